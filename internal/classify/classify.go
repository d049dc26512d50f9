package classify

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"hoops-sms/internal/models"
	"hoops-sms/internal/storage"
)

// Roster is the subset of the member store the classifier needs.
type Roster interface {
	FindByPhone(ctx context.Context, phone string) (models.Member, error)
}

var (
	// Leading alphabetic token plus an optional sub count right after it.
	rsvpPattern = regexp.MustCompile(`^([a-zA-Z]+)\s*(\d+)?`)
	// Admin prefix marker and the remainder of the message.
	adminPattern = regexp.MustCompile(`^([?!])\s?(.*)`)
)

// Classifier maps an inbound (sender phone, text) pair to an Intent using
// the roster to resolve the sender's role.
type Classifier struct {
	roster Roster
}

func New(roster Roster) *Classifier {
	return &Classifier{roster: roster}
}

// Classify determines the intent of one inbound message. Messages that
// match no rule come back as IntentUnrecognized, never as an error; errors
// are reserved for roster lookup failures.
func (c *Classifier) Classify(ctx context.Context, senderPhone, rawText string) (models.Intent, error) {
	trimmed := strings.TrimSpace(rawText)

	if m := rsvpPattern.FindStringSubmatch(trimmed); m != nil {
		switch strings.ToLower(m[1]) {
		case "y", "yes":
			return rsvpIntent(models.ReplyYes, m[2]), nil
		case "n", "no":
			return rsvpIntent(models.ReplyNo, m[2]), nil
		case "l", "list":
			return models.Intent{Kind: models.IntentListStatus}, nil
		}

		// Anything else starting with a letter is a note for the admins,
		// as long as the sender is on the roster.
		member, err := c.lookup(ctx, senderPhone)
		if err != nil {
			return models.Intent{}, err
		}
		if member != nil {
			return models.Intent{Kind: models.IntentFreeText, Text: rawText}, nil
		}
		return models.Intent{Kind: models.IntentUnrecognized}, nil
	}

	// No leading alphabetic character: only the admin prefix commands
	// remain, and only for admins.
	if m := adminPattern.FindStringSubmatch(trimmed); m != nil {
		member, err := c.lookup(ctx, senderPhone)
		if err != nil {
			return models.Intent{}, err
		}
		if member != nil && member.Admin {
			switch m[1] {
			case "?":
				return models.Intent{Kind: models.IntentAdminReminder}, nil
			case "!":
				return models.Intent{Kind: models.IntentAdminBroadcast, Text: m[2]}, nil
			}
		}
	}

	return models.Intent{Kind: models.IntentUnrecognized}, nil
}

// IsMember reports whether the phone belongs to a roster member.
func (c *Classifier) IsMember(ctx context.Context, phone string) (bool, error) {
	member, err := c.lookup(ctx, phone)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

func (c *Classifier) lookup(ctx context.Context, phone string) (*models.Member, error) {
	member, err := c.roster.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func rsvpIntent(reply models.Reply, subDigits string) models.Intent {
	sub := 0
	if subDigits != "" {
		// The pattern guarantees digits, so the only failure mode is a
		// value too large to care about; treat it as no sub count.
		if n, err := strconv.Atoi(subDigits); err == nil {
			sub = n
		}
	}
	return models.Intent{Kind: models.IntentRSVP, Reply: reply, SubCount: sub}
}
