package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hoops-sms/internal/clock"
	"hoops-sms/internal/models"
)

// Ledger is the append path used for backfill. Historical records go in
// directly, without the change-detection pass interactive submissions get.
type Ledger interface {
	Append(ctx context.Context, rec models.RSVPRecord) error
}

// Importer backfills the ledger from historical CSV files. Each file is
// named <YYYY-MM-DD>.csv and holds a "phone_number,name,rsvp" header
// followed by one row per response, with "y"/"n" replies.
type Importer struct {
	ledger Ledger
	clock  *clock.Clock
	log    zerolog.Logger
}

func New(ledger Ledger, gameClock *clock.Clock, log zerolog.Logger) *Importer {
	return &Importer{
		ledger: ledger,
		clock:  gameClock,
		log:    log.With().Str("component", "importer").Logger(),
	}
}

// ImportFile loads one history file for the game on the given date and
// returns the number of records appended.
func (i *Importer) ImportFile(ctx context.Context, path, date string) (int, error) {
	game, err := i.clock.GameOn(date)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// Skip the header row.
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	count := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(row) < 3 {
			i.log.Warn().Str("file", path).Strs("row", row).Msg("Skipping short row")
			continue
		}

		name := strings.TrimSpace(row[1])
		reply := models.ReplyNo
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(row[2])), "y") {
			reply = models.ReplyYes
		}

		rec := models.RSVPRecord{
			GameTime:   game,
			MemberName: name,
			Reply:      reply,
			RecordedAt: time.Now(),
		}
		if err := i.ledger.Append(ctx, rec); err != nil {
			return count, fmt.Errorf("failed to import row for %q: %w", name, err)
		}
		count++
	}

	i.log.Info().Str("file", path).Str("game", date).Int("records", count).Msg("History imported")
	return count, nil
}

// ImportDir imports every <date>.csv file in dir.
func (i *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		date := strings.TrimSuffix(entry.Name(), ".csv")
		if _, err := time.Parse(clock.DateLayout, date); err != nil {
			i.log.Warn().Str("file", entry.Name()).Msg("Skipping file without a date name")
			continue
		}

		n, err := i.ImportFile(ctx, filepath.Join(dir, entry.Name()), date)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
