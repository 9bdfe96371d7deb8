// simulate fires concurrent booking requests at the API, deliberately
// contending for the same slots, and reports how many bookings succeeded,
// how many were refused as conflicts, and the latency distribution. With a
// correct engine the number of successes never exceeds the number of slots.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/availability-booking/internal/config"
	"github.com/clinicore/availability-booking/internal/db"
)

type simConfig struct {
	APIBaseURL string
	Workers    int
	Duration   time.Duration
	SlotLimit  int
}

type slotTarget struct {
	SpecialistID uuid.UUID
	BranchID     uuid.UUID
	Date         string
	StartTime    string
}

type metrics struct {
	total     int64
	success   int64
	conflict  int64
	errored   int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.errored, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "simulate").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	sim := simConfig{
		APIBaseURL: getEnv("SIM_API_URL", "http://localhost:"+cfg.HTTPPort),
		Workers:    getEnvInt("SIM_WORKERS", 16),
		Duration:   getEnvDuration("SIM_DURATION", 30*time.Second),
		SlotLimit:  getEnvInt("SIM_SLOT_LIMIT", 50),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	targets, patients, err := loadTargets(context.Background(), pool, sim.SlotLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("load simulation targets")
	}
	if len(targets) == 0 || len(patients) == 0 {
		log.Fatal().Msg("no bookable slots or patients found, run seed first")
	}

	log.Info().
		Int("slots", len(targets)).
		Int("patients", len(patients)).
		Int("workers", sim.Workers).
		Dur("duration", sim.Duration).
		Msg("starting booking simulation")

	var m metrics
	runCtx, stop := context.WithTimeout(context.Background(), sim.Duration)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < sim.Workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			client := &http.Client{Timeout: 10 * time.Second}
			for runCtx.Err() == nil {
				target := targets[rng.Intn(len(targets))]
				patient := patients[rng.Intn(len(patients))]
				bookOnce(runCtx, client, sim.APIBaseURL, target, patient, &m)
			}
		}(time.Now().UnixNano() + int64(i))
	}
	wg.Wait()

	log.Info().
		Int64("total", atomic.LoadInt64(&m.total)).
		Int64("success", atomic.LoadInt64(&m.success)).
		Int64("conflict", atomic.LoadInt64(&m.conflict)).
		Int64("error", atomic.LoadInt64(&m.errored)).
		Dur("p50", m.percentile(50)).
		Dur("p95", m.percentile(95)).
		Msg("simulation complete")

	if s, t := atomic.LoadInt64(&m.success), int64(len(targets)); s > t {
		log.Error().Int64("success", s).Int64("slots", t).Msg("MORE SUCCESSES THAN SLOTS: double booking detected")
		os.Exit(1)
	}
}

func bookOnce(ctx context.Context, client *http.Client, baseURL string, target slotTarget, patientID uuid.UUID, m *metrics) {
	pid := patientID.String()
	body, _ := json.Marshal(map[string]any{
		"specialist_id": target.SpecialistID.String(),
		"branch_id":     target.BranchID.String(),
		"date":          target.Date,
		"time":          target.StartTime,
		"patient_id":    pid,
		"title":         "load test visit",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			m.record(time.Since(start), 0)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	m.record(time.Since(start), resp.StatusCode)
}

// loadTargets pulls a handful of bookable slots and patient ids straight
// from the database so the simulation hits real coordinates.
func loadTargets(ctx context.Context, pool *pgxpool.Pool, limit int) ([]slotTarget, []uuid.UUID, error) {
	rows, err := pool.Query(ctx, `
		SELECT s.specialist_id, s.branch_id, s.date, s.start_time
		FROM time_slots s
		JOIN available_dates d ON d.id = s.available_date_id
		WHERE s.status = 'available'
		  AND d.status = 'open'
		ORDER BY s.date, s.start_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	var targets []slotTarget
	for rows.Next() {
		var t slotTarget
		var date time.Time
		if err := rows.Scan(&t.SpecialistID, &t.BranchID, &date, &t.StartTime); err != nil {
			return nil, nil, err
		}
		t.Date = date.Format("2006-01-02")
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	prows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 500`)
	if err != nil {
		return nil, nil, fmt.Errorf("load patients: %w", err)
	}
	defer prows.Close()

	var patients []uuid.UUID
	for prows.Next() {
		var id uuid.UUID
		if err := prows.Scan(&id); err != nil {
			return nil, nil, err
		}
		patients = append(patients, id)
	}
	if err := prows.Err(); err != nil {
		return nil, nil, err
	}

	return targets, patients, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
