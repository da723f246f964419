package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/skillcadence/internal/config"
	"github.com/conorfennell/skillcadence/internal/fsrs"
	"github.com/conorfennell/skillcadence/internal/journal"
	"github.com/conorfennell/skillcadence/internal/metrics"
	"github.com/conorfennell/skillcadence/internal/oracle"
	"github.com/conorfennell/skillcadence/internal/quota"
	"github.com/conorfennell/skillcadence/internal/schedule"
	"github.com/conorfennell/skillcadence/internal/storage"
	"github.com/conorfennell/skillcadence/internal/storage/kv"
)

var (
	configPath string
	userID     string

	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "skillcadence",
		Short:         "Schedule skill practice reviews from free-text practice logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(config.Options{
				File:     configPath,
				EnvFiles: []string{".env"},
				Flags:    cmd.Flags(),
				FlagKeys: flagKeys,
			})
			if err != nil {
				return err
			}
			cfg = loaded
			logger = cfg.Log.NewLogger(os.Stderr)
			slog.SetDefault(logger)
			return nil
		},
	}
)

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"db":        "store.path",
	"store":     "store.driver",
	"addr":      "server.addr",
	"log-level": "log.level",
	"oracle":    "oracle.provider",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "skillcadence.yaml", "Path to the YAML config file")
	pf.StringVar(&userID, "user", "local", "User the command acts for")
	pf.String("db", "", "Path to the database file or directory")
	pf.String("store", "", "Storage driver: sqlite or badger")
	pf.String("addr", "", "HTTP listen address")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("oracle", "", "Analysis provider: openai, gemini or static")

	rootCmd.AddCommand(serveCmd, skillCmd, logCmd, dueCmd, sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Store is what both storage backends provide.
type Store interface {
	journal.Store
	io.Closer
}

// app holds the wired components for one command run.
type app struct {
	store   Store
	journal *journal.Service
	metrics *metrics.Metrics
	closers []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{metrics: metrics.New()}

	store, err := openStore()
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store)

	o, err := newOracle(ctx, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	limiter, err := newLimiter(ctx, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	params, err := cfg.FSRSParams()
	if err != nil {
		a.Close()
		return nil, err
	}
	model, err := fsrs.NewModel(params)
	if err != nil {
		a.Close()
		return nil, err
	}
	floors, err := cfg.FloorPolicy()
	if err != nil {
		a.Close()
		return nil, err
	}

	scheduler := schedule.New(model, floors, store, store, logger)
	a.journal = journal.New(store, o, limiter, scheduler,
		journal.WithMetrics(a.metrics),
		journal.WithLogger(logger),
	)
	return a, nil
}

func openStore() (Store, error) {
	switch cfg.Store.Driver {
	case "badger":
		return kv.Open(cfg.Store.Path, logger)
	default:
		db, err := storage.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		logger.Debug("database opened", "path", cfg.Store.Path)
		return db, nil
	}
}

func newOracle(ctx context.Context, a *app) (oracle.Oracle, error) {
	oc := cfg.Oracle
	var o oracle.Oracle
	switch oc.Provider {
	case "openai":
		o = oracle.NewOpenAI(oracle.OpenAIConfig{
			APIKey:      oc.APIKey,
			BaseURL:     oc.BaseURL,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			Timeout:     oc.Timeout,
		}, logger)
	case "gemini":
		g, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
			APIKey:      oc.APIKey,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			Timeout:     oc.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g)
		o = g
	default:
		logger.Warn("using the static analysis oracle; every log gets the same neutral analysis")
		o = oracle.Static{Result: oracle.FallbackAnalysis()}
	}
	if oc.Fallback {
		o = oracle.WithFallback(o, oracle.FallbackAnalysis(), logger)
	}
	return o, nil
}

func newLimiter(ctx context.Context, a *app) (quota.Limiter, error) {
	q := cfg.Quota
	switch {
	case q.DailyLimit <= 0:
		return quota.Unlimited{}, nil
	case q.RedisURL != "":
		r, err := quota.NewRedis(ctx, q.RedisURL, q.DailyLimit, q.KeyPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r)
		return r, nil
	default:
		return quota.NewMemory(q.DailyLimit), nil
	}
}
