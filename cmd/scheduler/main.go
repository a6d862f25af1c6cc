package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/priority-appointment-scheduling/internal/app"
	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/cli"
	"github.com/hackgods/priority-appointment-scheduling/internal/config"
	"github.com/hackgods/priority-appointment-scheduling/internal/db"
	"github.com/hackgods/priority-appointment-scheduling/internal/demo"
	"github.com/hackgods/priority-appointment-scheduling/internal/logging"
)

type flags struct {
	logLevel     string
	slotMinutes  int
	workStart    string
	workEnd      string
	flexMinutes  int
	seed         int64
	demoRequests int
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "scheduler",
		Short:         "Priority appointment scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, &f)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	pf.IntVar(&f.slotMinutes, "slot-minutes", 0, "default slot length in minutes (overrides SLOT_DURATION)")
	pf.StringVar(&f.workStart, "work-start", "", "working day start as HH:MM (overrides WORK_START)")
	pf.StringVar(&f.workEnd, "work-end", "", "working day end as HH:MM (overrides WORK_END)")
	pf.IntVar(&f.flexMinutes, "flexibility", 0, "default flexibility in minutes (overrides DEFAULT_FLEXIBILITY)")
	pf.Int64Var(&f.seed, "seed", 0, "seed for generated demo requests (overrides DEMO_SEED)")
	pf.IntVar(&f.demoRequests, "requests", -1, "extra generated demo requests (overrides DEMO_REQUESTS)")

	rootCmd.AddCommand(menuCmd(&f))
	rootCmd.AddCommand(demoCmd(&f))
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func menuCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Run the interactive menu (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, f)
		},
	}
}

func demoCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the demo scenario once and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := demo.DefaultOptions(time.Now())
			opts.Hours = calendar.WorkingHours{Start: cfg.WorkStart, End: cfg.WorkEnd}
			opts.SlotDuration = cfg.SlotDuration
			opts.Seed = cfg.DemoSeed
			opts.ExtraRequests = cfg.DemoRequests

			_, err = cli.RunDemo(ctx, a.Service, cmd.OutOrStdout(), opts)
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the snapshot tables in POSTGRES_DSN",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return fmt.Errorf("POSTGRES_DSN is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, true)
			if err != nil {
				return err
			}
			pool.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func runMenu(cmd *cobra.Command, f *flags) error {
	cfg, log, err := loadConfig(f)
	if err != nil {
		return err
	}

	// The menu owns stdout; keep logs quiet unless asked for.
	if f.logLevel == "" && cfg.IsDev() {
		log = log.Level(zerolog.WarnLevel)
	}

	a, err := app.Open(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	menu := cli.New(a.Service, cmd.InOrStdin(), cmd.OutOrStdout(), cli.Defaults{
		SlotDuration: cfg.SlotDuration,
		WorkStart:    cfg.WorkStart,
		WorkEnd:      cfg.WorkEnd,
		Flexibility:  cfg.DefaultFlexibility,
		DemoSeed:     cfg.DemoSeed,
		DemoRequests: cfg.DemoRequests,
	})
	return menu.Run(cmd.Context())
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(f *flags) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, zerolog.Nop(), err
	}

	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.slotMinutes > 0 {
		cfg.SlotDuration = time.Duration(f.slotMinutes) * time.Minute
	}
	if f.workStart != "" {
		if cfg.WorkStart, err = calendar.ParseClock(f.workStart); err != nil {
			return cfg, zerolog.Nop(), err
		}
	}
	if f.workEnd != "" {
		if cfg.WorkEnd, err = calendar.ParseClock(f.workEnd); err != nil {
			return cfg, zerolog.Nop(), err
		}
	}
	if cfg.WorkStart >= cfg.WorkEnd {
		return cfg, zerolog.Nop(), fmt.Errorf("work start must be before work end")
	}
	if f.flexMinutes > 0 {
		cfg.DefaultFlexibility = time.Duration(f.flexMinutes) * time.Minute
	}
	if f.seed != 0 {
		cfg.DemoSeed = f.seed
	}
	if f.demoRequests >= 0 {
		cfg.DemoRequests = f.demoRequests
	}

	log := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "scheduler").Logger()
	return cfg, log, nil
}
