// Package main is the entry point for the place/landmark link backfill.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/kuchikomi/internal/config"
	"github.com/onnwee/kuchikomi/internal/db"
	"github.com/onnwee/kuchikomi/internal/geo"
	"github.com/onnwee/kuchikomi/internal/middleware"
)

var errDatabaseRequired = errors.New("DATABASE_URL is required")

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	topK := flag.Int("top-k", geo.DefaultTopK, "nearest landmarks kept per place")
	flag.Parse()

	if *help {
		fmt.Println("Kuchikomi Landmark Backfill")
		fmt.Println()
		fmt.Println("Usage: backfill [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if errs = backfillConfigErrors(cfg, errs); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.DatabaseURL, *topK, logger); err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

// backfillConfigErrors keeps the config errors that matter to the backfill.
// It never signs tokens, so a missing JWT secret is fine, but it cannot run
// without a database.
func backfillConfigErrors(cfg *config.Config, errs []error) []error {
	var out []error
	for _, err := range errs {
		if errors.Is(err, config.ErrMissingJWTSecret) || errors.Is(err, config.ErrMissingDatabaseURL) {
			continue
		}
		out = append(out, err)
	}
	if cfg != nil && cfg.DatabaseURL == "" {
		out = append(out, errDatabaseRequired)
	}
	return out
}

// run connects to the database and rebuilds every place's links.
func run(ctx context.Context, databaseURL string, topK int, logger *slog.Logger) error {
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	_, err = backfill(ctx, geo.NewPostgresIndex(conn, topK), topK, logger)
	return err
}

// backfill reads coordinates from idx and writes the recomputed links back.
func backfill(ctx context.Context, idx *geo.PostgresIndex, topK int, logger *slog.Logger) (geo.BackfillResult, error) {
	landmarks, err := idx.Landmarks(ctx)
	if err != nil {
		return geo.BackfillResult{}, err
	}
	places, err := idx.Places(ctx)
	if err != nil {
		return geo.BackfillResult{}, err
	}
	logger.Info("backfill starting", "places", len(places), "landmarks", len(landmarks), "top_k", topK)

	res, err := geo.Backfill(ctx, places, landmarks, idx, topK)
	if err != nil {
		return res, err
	}
	logger.Info("backfill complete",
		"places_written", res.Places,
		"places_skipped", res.Skipped,
		"links_written", res.Links,
	)
	return res, nil
}
