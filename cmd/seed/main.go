package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/availability-booking/internal/db"
	"github.com/clinicore/availability-booking/internal/schedule"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}

	gofakeit.Seed(time.Now().UnixNano())

	branchIDs, err := seedBranches(context.Background(), pool, 3, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed branches")
	}
	specialistIDs, err := seedSpecialists(context.Background(), pool, 25, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed specialists")
	}
	if err := seedPatients(context.Background(), pool, 2000, log); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedSchedules(context.Background(), pool, specialistIDs, branchIDs, log); err != nil {
		log.Fatal().Err(err).Msg("seed schedules")
	}

	log.Info().Msg("seed complete")
}

func seedBranches(ctx context.Context, pool *pgxpool.Pool, count int, log zerolog.Logger) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding branches")

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.City() + " Clinic"

		_, err := tx.Exec(ctx, `
			INSERT INTO branches (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedSpecialists(ctx context.Context, pool *pgxpool.Pool, count int, log zerolog.Logger) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding specialists")

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO specialists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, log zerolog.Logger) error {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			phone := gofakeit.Phone()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, phone, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

// seedSchedules creates one week-long definition per specialist at a random
// branch and expands it, so the API has bookable slots out of the box.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, specialistIDs, branchIDs []uuid.UUID, log zerolog.Logger) error {
	log.Info().Int("count", len(specialistIDs)).Msg("seeding schedule definitions")

	repo := schedule.NewPgRepository(pool)
	svc := schedule.NewService(repo, log)

	start := schedule.TruncateToDay(time.Now().UTC())
	end := start.AddDate(0, 0, 6)

	for _, specialistID := range specialistIDs {
		branchID := branchIDs[gofakeit.Number(0, len(branchIDs)-1)]

		def, err := svc.CreateDefinition(ctx, schedule.DefinitionParams{
			SpecialistID:    specialistID,
			BranchID:        branchID,
			StartDate:       start,
			EndDate:         end,
			StartTime:       "09:00",
			EndTime:         "17:00",
			IntervalMinutes: 30,
		})
		if err != nil {
			return err
		}

		if _, err := svc.Expand(ctx, def.ID); err != nil {
			return err
		}
	}

	return nil
}
