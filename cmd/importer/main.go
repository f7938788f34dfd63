// Command importer loads the rental CSV into a SQLite database that the
// dashboard can serve with data.source: sqlite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/dataset"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), os.Args[1:], logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Fatal("import failed", zap.Error(err))
	}
}

func run(ctx context.Context, args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	csvPath := fs.String("csv", "data/bike_sharing.csv", "path to the rental CSV")
	dbPath := fs.String("db", "data/bike_sharing.db", "path to the SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start := time.Now()
	records, err := dataset.LoadCSV(*csvPath)
	if err != nil {
		return err
	}

	repo, err := dataset.OpenSQLite(*dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.SaveRecords(ctx, records); err != nil {
		return err
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("import complete",
		zap.String("csv", *csvPath),
		zap.String("db", *dbPath),
		zap.Int("imported", len(records)),
		zap.Int("total", total),
		zap.Duration("duration", time.Since(start)))
	return nil
}
