package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/app"
	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/config"
	"github.com/hackgods/priority-appointment-scheduling/internal/demo"
	"github.com/hackgods/priority-appointment-scheduling/internal/logging"
)

var specialties = []string{
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

// seed fills Postgres with doctor calendars, a working week of slots each
// and a queue of pending requests ready for the batch worker.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("", "info").Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "seed").Logger()

	if cfg.PostgresDSN == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	calendars := getInt("SEED_CALENDARS", 10)
	days := getInt("SEED_DAYS", 5)
	requests := getInt("SEED_REQUESTS", 40)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	faker := gofakeit.New(uint64(cfg.DemoSeed))
	start := time.Now().AddDate(0, 0, 1)

	for i := 0; i < calendars; i++ {
		id, err := seedCalendar(ctx, a.Service, faker, cfg, start, days, requests)
		if err != nil {
			log.Fatal().Err(err).Msg("seed calendar")
		}
		if err := a.Service.Save(ctx, id); err != nil {
			log.Fatal().Err(err).Msg("save calendar")
		}
		log.Info().Int("seeded", i+1).Int("of", calendars).Msg("calendar seeded")
	}

	log.Info().Msg("seed complete")
}

func seedCalendar(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, cfg config.Config, start time.Time, days, requests int) (uuid.UUID, error) {
	doctor := "Dr. " + faker.LastName() + " (" + faker.RandomString(specialties) + ")"
	info, err := svc.CreateCalendar(ctx, doctor)
	if err != nil {
		return uuid.Nil, err
	}

	hours := calendar.WorkingHours{Start: cfg.WorkStart, End: cfg.WorkEnd}
	if _, err := svc.GenerateSlots(ctx, info.ID, appointment.GenerateParams{
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, days-1),
		Hours:        hours,
		SlotDuration: cfg.SlotDuration,
		BreakStart:   12 * time.Hour,
		BreakEnd:     13 * time.Hour,
		Weekdays:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}); err != nil {
		return uuid.Nil, err
	}

	for d := 0; d < days; d++ {
		opts := demo.Options{Day: start.AddDate(0, 0, d), Hours: hours, SlotDuration: cfg.SlotDuration}
		for _, r := range demo.RandomRequests(faker, opts, requests/days) {
			if _, err := svc.Submit(ctx, info.ID, r); err != nil {
				return uuid.Nil, err
			}
		}
	}
	return info.ID, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
