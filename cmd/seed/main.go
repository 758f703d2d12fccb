package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/scheduling-service/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedRules(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed rules: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Médecine générale",
		"Cardiologie",
		"Dermatologie",
		"Pédiatrie",
		"Gynécologie",
		"Ophtalmologie",
		"ORL",
		"Endocrinologie",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

// seedRules gives every doctor a weekday morning block and most an
// afternoon block, with randomized hours so slot grids differ per doctor.
func seedRules(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding rules for %d doctors", len(doctorIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorID := range doctorIDs {
		morningStart := gofakeit.Number(8, 9)
		payload, err := rulePayload([]int{1, 2, 3, 4, 5}, morningStart, 12)
		if err != nil {
			return err
		}
		if err := insertRule(ctx, tx, doctorID, payload); err != nil {
			return err
		}

		if gofakeit.Bool() {
			afternoonEnd := gofakeit.Number(17, 19)
			payload, err := rulePayload([]int{1, 2, 3, 4, 5}, 14, afternoonEnd)
			if err != nil {
				return err
			}
			if err := insertRule(ctx, tx, doctorID, payload); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("rules seeded")
	return nil
}

func rulePayload(days []int, startHour, endHour int) (string, error) {
	raw, err := json.Marshal(map[string]any{
		"frequency":  "WEEKLY",
		"daysOfWeek": days,
		"startTime":  fmt.Sprintf("%02d:00", startHour),
		"endTime":    fmt.Sprintf("%02d:00", endHour),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func insertRule(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID, payload string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO availability_rules (id, doctor_id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, uuid.New(), doctorID, payload)
	return err
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

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
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
