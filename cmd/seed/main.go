// Command seed lays out two-week pay periods and writes them to Postgres.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"timeclock/internal/config"
	"timeclock/internal/logging"
	"timeclock/internal/payroll"
	"timeclock/internal/store"
	"timeclock/internal/timeclock"
)

func main() {
	from := flag.String("from", "", "first period start, YYYY-MM-DD")
	to := flag.String("to", "", "last period start bound, YYYY-MM-DD")
	rate := flag.Float64("rate", 0, "hourly rate (default DEFAULT_HOURLY_RATE)")
	dryRun := flag.Bool("dry-run", false, "print periods as JSON instead of writing them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.Production(), cfg.LogLevel)

	first, err := time.ParseInLocation(timeclock.DateLayout, *from, time.UTC)
	if err != nil {
		log.Error("bad -from", "value", *from, "error", err)
		os.Exit(2)
	}
	last, err := time.ParseInLocation(timeclock.DateLayout, *to, time.UTC)
	if err != nil {
		log.Error("bad -to", "value", *to, "error", err)
		os.Exit(2)
	}
	if *rate <= 0 {
		*rate = cfg.DefaultHourlyRate
	}

	periods := payroll.BuildPeriods(first, last, *rate)
	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(periods); err != nil {
			log.Error("encode periods", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := store.NewPostgres(db).UpsertPayPeriods(ctx, periods); err != nil {
		log.Error("write periods failed", "error", err)
		os.Exit(1)
	}
	log.Info("pay periods written", "count", len(periods), "from", *from, "to", *to, "hourly_rate", *rate)
}
