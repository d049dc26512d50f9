package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"hoops-sms/internal/clock"
	"hoops-sms/internal/config"
	"hoops-sms/internal/engine"
	"hoops-sms/internal/importer"
	"hoops-sms/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	file := flag.String("file", "", "single history CSV to import (requires -date)")
	date := flag.String("date", "", "game date (YYYY-MM-DD) for -file")
	dir := flag.String("dir", "", "directory of <date>.csv history files to import")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load config")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Unknown timezone")
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DatabasePath).Msg("Failed to open storage")
	}
	defer store.Close()

	gameClock := clock.New(cfg.GameWeekday, cfg.GameHour, cfg.GameMinute, loc)
	imp := importer.New(store.RSVPs(), gameClock, log)

	ctx := context.Background()
	switch {
	case *file != "" && *date != "":
		n, err := imp.ImportFile(ctx, *file, *date)
		if err != nil {
			log.Fatal().Err(err).Msg("Import failed")
		}
		log.Info().Int("records", n).Msg("Import finished")
		printStatus(ctx, store, gameClock, *date, log)
	case *dir != "":
		n, err := imp.ImportDir(ctx, *dir)
		if err != nil {
			log.Fatal().Err(err).Msg("Import failed")
		}
		log.Info().Int("records", n).Msg("Import finished")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// printStatus shows the imported game's RSVP report so the import can be
// eyeballed immediately.
func printStatus(ctx context.Context, store *storage.Store, gameClock *clock.Clock, date string, log zerolog.Logger) {
	game, err := gameClock.GameOn(date)
	if err != nil {
		return
	}

	eng := engine.New(store.Members(), store.RSVPs(), store.Polls(), gameClock, log)
	report, err := eng.StatusReport(ctx, game)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build status report")
		return
	}
	fmt.Println(report)
}
