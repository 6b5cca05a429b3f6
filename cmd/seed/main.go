package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tcioe/appointment-service/internal/appointment"
	"github.com/tcioe/appointment-service/internal/db"
	"github.com/tcioe/appointment-service/internal/logging"
)

func main() {
	logging.Init("seed", "dev")
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool, "internal/db/schema.sql"); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedCategoriesAndSlots(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("seed categories and slots")
	}

	log.Info().Msg("seed complete")
}

type seedCategory struct {
	code               string
	name               string
	priority           int
	requiresDepartment bool
	durationMin        int
	slotsPerOfficial   int
}

func seedCategoriesAndSlots(ctx context.Context, pool *pgxpool.Pool) error {
	categories := []seedCategory{
		{code: "CAMPUS_CHIEF", name: "Campus Chief", priority: 1, durationMin: 30, slotsPerOfficial: 3},
		{code: "ASST_CAMPUS_CHIEF", name: "Assistant Campus Chief", priority: 2, durationMin: 30, slotsPerOfficial: 2},
		{code: "DEPARTMENT_HEAD", name: "Department Head", priority: 3, requiresDepartment: true, durationMin: 20, slotsPerOfficial: 3},
		{code: "EXAM_COORDINATOR", name: "Examination Coordinator", priority: 4, durationMin: 15, slotsPerOfficial: 2},
	}

	// Campus working days are Sunday through Friday.
	weekdays := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	for _, c := range categories {
		catID := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO appointment_categories
				(id, code, name, description, is_active, daily_cap, default_duration_min,
				 advance_booking_days, requires_approval, requires_department, priority)
			VALUES ($1, $2, $3, $4, TRUE, 10, $5, 30, TRUE, $6, $7)
			ON CONFLICT (code) DO NOTHING
		`, catID, c.code, c.name, gofakeit.Sentence(8), c.durationMin, c.requiresDepartment, c.priority)
		if err != nil {
			return fmt.Errorf("insert category %s: %w", c.code, err)
		}

		officialID := uuid.New()
		officialName := gofakeit.Name()
		officialEmail := fmt.Sprintf("%s@tcioe.edu.np", gofakeit.Username())

		var deptID *uuid.UUID
		if c.requiresDepartment {
			id := uuid.New()
			deptID = &id
		}

		for i := 0; i < c.slotsPerOfficial; i++ {
			weekday := weekdays[gofakeit.Number(0, len(weekdays)-1)]
			startHour := gofakeit.Number(9, 13)
			start := appointment.ClockMinutes(startHour * 60)
			end := start + appointment.ClockMinutes(2*60)

			_, err := pool.Exec(ctx, `
				INSERT INTO appointment_slots
					(id, category_id, official_id, official_name, official_email,
					 department_id, weekday, start_time, end_time, duration_min, is_active)
				VALUES ($1,
				        (SELECT id FROM appointment_categories WHERE code = $2),
				        $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
				ON CONFLICT DO NOTHING
			`, uuid.New(), c.code, officialID, officialName, officialEmail,
				deptID, int16(weekday), start.String(), end.String(), c.durationMin)
			if err != nil {
				return fmt.Errorf("insert slot for %s: %w", c.code, err)
			}
		}

		log.Info().Str("category", c.code).Int("slots", c.slotsPerOfficial).Msg("seeded")
	}

	return nil
}
