package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hyperalpha/traderscore/internal/bus"
	"github.com/hyperalpha/traderscore/internal/config"
	"github.com/hyperalpha/traderscore/internal/db"
	"github.com/hyperalpha/traderscore/internal/scheduler"
	"github.com/hyperalpha/traderscore/internal/upstream"
)

const version = "v1.0.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     "traderscore",
		Short:   "Trader leaderboard scoring and selection engine",
		Version: version,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (env vars always override)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler: score and persist every configured period on a repeating timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath)
		},
	}

	var cyclePeriod int
	cycleCmd := &cobra.Command{
		Use:   "cycle",
		Short: "Execute one refresh cycle immediately and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneCycle(configPath, cyclePeriod)
		},
	}
	cycleCmd.Flags().IntVar(&cyclePeriod, "period", 0, "period in days to run (defaults to the first configured period)")

	var readPeriod int
	var readSelected bool
	var readLimit int
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Print the persisted ranking for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(configPath, readPeriod, readSelected, readLimit)
		},
	}
	readCmd.Flags().IntVar(&readPeriod, "period", 30, "period in days to read")
	readCmd.Flags().BoolVar(&readSelected, "selected", false, "order by weight descending instead of rank ascending")
	readCmd.Flags().IntVar(&readLimit, "limit", 100, "maximum rows to print")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(readCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(configPath string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildScheduler(cfg config.Config) (*scheduler.Scheduler, *db.Manager, error) {
	manager, err := db.NewManager(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	upCfg := upstream.DefaultConfig()
	upCfg.BaseURL = cfg.LeaderboardBaseURL
	upCfg.InfoURL = cfg.InfoURL
	client := upstream.NewClient(upCfg)

	sink := bus.NewAuto("traderscore:candidates")
	sched := scheduler.New(cfg, client, manager.Persister(), sink)
	return sched, manager, nil
}

func runDaemon(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	sched, manager, err := buildScheduler(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Ints("periods", cfg.Periods).Dur("interval", cfg.RefreshInterval()).Msg("starting traderscore scheduler")
	sched.Start(ctx)
	log.Info().Msg("scheduler stopped")
	return nil
}

func runOneCycle(configPath string, period int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if period == 0 {
		if len(cfg.Periods) == 0 {
			return fmt.Errorf("no periods configured")
		}
		period = cfg.Periods[0]
	}

	sched, manager, err := buildScheduler(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result := sched.RunCycle(ctx, period)
	if !result.Success {
		return fmt.Errorf("cycle failed: %s", result.Error)
	}
	fmt.Printf("cycle complete: period=%d ranked=%d selected=%d duration=%s\n",
		result.PeriodDays, result.RankedIn, result.Selected, result.Duration)
	return nil
}

func runRead(configPath string, period int, selected bool, limit int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	manager, err := db.NewManager(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	persister := manager.Persister()

	if selected {
		entries, err := persister.ReadSelected(ctx, period, limit)
		if err != nil {
			return fmt.Errorf("read selected: %w", err)
		}
		for _, e := range entries {
			fmt.Printf("rank=%d weight=%.4f score=%.4f address=%s\n", e.Rank, e.Weight, e.Score, e.Address)
		}
		return nil
	}

	entries, err := persister.ReadRanked(ctx, period, limit)
	if err != nil {
		return fmt.Errorf("read ranked: %w", err)
	}
	for _, e := range entries {
		fmt.Printf("rank=%d weight=%.4f score=%.4f address=%s\n", e.Rank, e.Weight, e.Score, e.Address)
	}
	return nil
}
