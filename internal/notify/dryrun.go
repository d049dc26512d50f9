package notify

import (
	"context"

	"github.com/rs/zerolog"

	"hoops-sms/internal/models"
)

// DryRunSender logs outbound messages instead of sending them. Used when
// the dry_run config flag is set.
type DryRunSender struct {
	log zerolog.Logger
}

func NewDryRunSender(log zerolog.Logger) *DryRunSender {
	return &DryRunSender{log: log.With().Str("component", "dry-run").Logger()}
}

func (s *DryRunSender) Send(_ context.Context, member models.Member, text string) error {
	s.log.Info().
		Str("member", member.Name).
		Str("phone", member.Phone).
		Str("text", text).
		Msg("Would send message")
	return nil
}
