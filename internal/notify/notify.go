package notify

import (
	"context"

	"github.com/rs/zerolog"

	"hoops-sms/internal/models"
)

// Sender delivers one text message to one member. The transport behind it
// (SMS gateway, console, test fake) is interchangeable.
type Sender interface {
	Send(ctx context.Context, member models.Member, text string) error
}

// Notification is a fan-out request: the same text for every listed
// recipient.
type Notification struct {
	To   []models.Member
	Text string
}

// Dispatcher fans notifications out through a Sender. Delivery is
// best-effort: a failure for one recipient is logged and the rest of the
// fan-out continues.
type Dispatcher struct {
	sender Sender
	log    zerolog.Logger
}

func NewDispatcher(sender Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

// Dispatch delivers every notification to every recipient and returns the
// number of deliveries that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, notifications []Notification) int {
	failed := 0
	for _, n := range notifications {
		for _, member := range n.To {
			if err := d.sender.Send(ctx, member, n.Text); err != nil {
				failed++
				d.log.Error().
					Err(err).
					Str("member", member.Name).
					Str("phone", member.Phone).
					Msg("Failed to deliver message")
			}
		}
	}
	return failed
}
