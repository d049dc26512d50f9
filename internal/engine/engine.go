package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hoops-sms/internal/clock"
	"hoops-sms/internal/models"
	"hoops-sms/internal/notify"
	"hoops-sms/internal/storage"
)

var (
	// ErrMemberNotFound means a phone number does not resolve to exactly
	// one roster member.
	ErrMemberNotFound = errors.New("engine: phone does not match a roster member")
	// ErrInvalidReply means an unparseable reply reached the engine. The
	// classifier filters these upstream, so hitting it indicates a bug.
	ErrInvalidReply = errors.New("engine: invalid rsvp reply")
	// ErrPollAlreadyOpen means the poll for the next game was opened before.
	ErrPollAlreadyOpen = errors.New("engine: poll already open")
)

// Roster is the member store as seen by the engine.
type Roster interface {
	FindByPhone(ctx context.Context, phone string) (models.Member, error)
	List(ctx context.Context) ([]models.Member, error)
	ListAdmins(ctx context.Context) ([]models.Member, error)
}

// Ledger is the append-only RSVP store as seen by the engine.
type Ledger interface {
	Append(ctx context.Context, rec models.RSVPRecord) error
	AppendWithLatest(ctx context.Context, rec models.RSVPRecord) (prev models.RSVPRecord, hadPrev bool, err error)
	EffectiveByGame(ctx context.Context, gameTime time.Time) ([]models.RSVPRecord, error)
}

// Polls tracks which games already have an open poll.
type Polls interface {
	Open(ctx context.Context, gameTime time.Time) error
}

// Engine applies classified intents to the ledger and produces user-facing
// replies plus fan-out notifications for the dispatcher.
type Engine struct {
	roster Roster
	ledger Ledger
	polls  Polls
	clock  *clock.Clock
	log    zerolog.Logger
	now    func() time.Time
}

func New(roster Roster, ledger Ledger, polls Polls, gameClock *clock.Clock, log zerolog.Logger) *Engine {
	return &Engine{
		roster: roster,
		ledger: ledger,
		polls:  polls,
		clock:  gameClock,
		log:    log.With().Str("component", "engine").Logger(),
		now:    time.Now,
	}
}

// Execute dispatches one intent for the given member and returns the reply
// to send back plus any fan-out notifications. An empty reply means no
// response should be sent.
func (e *Engine) Execute(ctx context.Context, member models.Member, intent models.Intent) (string, []notify.Notification, error) {
	switch intent.Kind {
	case models.IntentRSVP:
		return e.SubmitRSVP(ctx, member, e.clock.NextGame(e.now()), intent.Reply, intent.SubCount)
	case models.IntentListStatus:
		report, err := e.StatusReport(ctx, e.clock.NextGame(e.now()))
		return report, nil, err
	case models.IntentFreeText:
		return e.RelayNote(ctx, member, intent.Text)
	case models.IntentAdminReminder:
		return e.Reminder(ctx)
	case models.IntentAdminBroadcast:
		return e.BroadcastMessage(ctx, intent.Text)
	case models.IntentUnrecognized:
		return "", nil, nil
	default:
		return "", nil, fmt.Errorf("engine: unknown intent kind %d", intent.Kind)
	}
}

// ResolveMember maps a sender phone number to a roster member.
func (e *Engine) ResolveMember(ctx context.Context, phone string) (models.Member, error) {
	member, err := e.roster.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Member{}, ErrMemberNotFound
		}
		return models.Member{}, fmt.Errorf("failed to resolve member: %w", err)
	}
	return member, nil
}

// SubmitRSVP appends a new RSVP record for the member and game. If the
// member had responded before and the answer or sub count changed, the
// admins are notified of the change. The first response for a game never
// triggers a change notification.
func (e *Engine) SubmitRSVP(ctx context.Context, member models.Member, game time.Time, reply models.Reply, subCount int) (string, []notify.Notification, error) {
	if !reply.Valid() || subCount < 0 {
		return "", nil, ErrInvalidReply
	}

	rec := models.RSVPRecord{
		GameTime:   game,
		MemberName: member.Name,
		Reply:      reply,
		SubCount:   subCount,
		RecordedAt: e.now(),
	}

	prev, hadPrev, err := e.ledger.AppendWithLatest(ctx, rec)
	if err != nil {
		return "", nil, fmt.Errorf("failed to record rsvp: %w", err)
	}

	var notifications []notify.Notification
	if hadPrev && (prev.Reply != reply || prev.SubCount != subCount) {
		admins, err := e.roster.ListAdmins(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("failed to list admins: %w", err)
		}
		notifications = append(notifications, notify.Notification{
			To:   admins,
			Text: fmt.Sprintf("%s changed RSVP to %s with %d subs!", member.Name, reply, subCount),
		})
		e.log.Info().
			Str("member", member.Name).
			Str("reply", string(reply)).
			Int("subs", subCount).
			Msg("RSVP changed")
	}

	rsvpPhrase := reply.Capitalized()
	if subCount > 0 {
		rsvpPhrase += fmt.Sprintf(" with %d sub(s)", subCount)
	}
	userReply := fmt.Sprintf("Thank you for RSVPing %s to the next game!", rsvpPhrase)

	return userReply, notifications, nil
}

// StatusReport renders the RSVP list for a game: aggregate counts followed
// by one line per member with an effective record, ordered by name.
func (e *Engine) StatusReport(ctx context.Context, game time.Time) (string, error) {
	records, err := e.ledger.EffectiveByGame(ctx, game)
	if err != nil {
		return "", fmt.Errorf("failed to load rsvps: %w", err)
	}

	var (
		yes, no, subs int
		lines         string
	)
	for _, rec := range records {
		switch rec.Reply {
		case models.ReplyYes:
			yes++
		case models.ReplyNo:
			no++
		}
		lines += fmt.Sprintf("%s: %s", rec.MemberName, rec.Reply.Capitalized())
		if rec.SubCount > 0 {
			subs += rec.SubCount
			plural := ""
			if rec.SubCount > 1 {
				plural = "s"
			}
			lines += fmt.Sprintf(" and is bringing %d sub%s", rec.SubCount, plural)
		}
		lines += "\n"
	}

	return fmt.Sprintf("Yes: %d No: %d Subs: %d (Total Players: %d)\n --- --- --- \n%s",
		yes, no, subs, yes+subs, lines), nil
}

// BroadcastInvite builds the poll invitation for the next game and
// addresses it to each target member individually.
func (e *Engine) BroadcastInvite(targets []models.Member) (string, []notify.Notification) {
	game := e.clock.NextGame(e.now())
	message := fmt.Sprintf(
		"will you be playing this %s at %s? Please reply with a 'yes' or 'no'. "+
			"Add a number after if you're bringing a guest: 'yes 2' for two subs.",
		game.Format("Monday"), game.Format("3:04 PM"))

	notifications := make([]notify.Notification, 0, len(targets))
	for _, member := range targets {
		notifications = append(notifications, notify.Notification{
			To:   []models.Member{member},
			Text: fmt.Sprintf("%s, %s", member.Name, message),
		})
	}

	return fmt.Sprintf("RSVP poll has been sent to %d players.", len(targets)), notifications
}

// Reminder re-invites every member without an effective record for the
// next game, whatever the members who did respond answered.
func (e *Engine) Reminder(ctx context.Context) (string, []notify.Notification, error) {
	members, err := e.roster.List(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list members: %w", err)
	}

	game := e.clock.NextGame(e.now())
	records, err := e.ledger.EffectiveByGame(ctx, game)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load rsvps: %w", err)
	}

	responded := make(map[string]bool, len(records))
	for _, rec := range records {
		responded[rec.MemberName] = true
	}

	var targets []models.Member
	for _, member := range members {
		if !responded[member.Name] {
			targets = append(targets, member)
		}
	}

	confirmation, notifications := e.BroadcastInvite(targets)
	return confirmation, notifications, nil
}

// StartPoll marks the next game's poll open and invites the whole roster.
// Returns ErrPollAlreadyOpen if the poll was opened before; nothing is
// sent in that case.
func (e *Engine) StartPoll(ctx context.Context) (string, []notify.Notification, error) {
	game := e.clock.NextGame(e.now())
	if err := e.polls.Open(ctx, game); err != nil {
		if errors.Is(err, storage.ErrPollExists) {
			return "", nil, fmt.Errorf("%w for %s", ErrPollAlreadyOpen, game.Format(clock.DateLayout))
		}
		return "", nil, fmt.Errorf("failed to open poll: %w", err)
	}

	members, err := e.roster.List(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list members: %w", err)
	}

	confirmation, notifications := e.BroadcastInvite(members)
	return confirmation, notifications, nil
}

// BroadcastMessage relays the admin's text verbatim to every member.
// Empty text sends nothing.
func (e *Engine) BroadcastMessage(ctx context.Context, text string) (string, []notify.Notification, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "Message not sent", nil, nil
	}

	members, err := e.roster.List(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list members: %w", err)
	}

	notifications := make([]notify.Notification, 0, len(members))
	for _, member := range members {
		notifications = append(notifications, notify.Notification{
			To:   []models.Member{member},
			Text: trimmed,
		})
	}

	return fmt.Sprintf("Member broadcast sent: \"%s\"", trimmed), notifications, nil
}

// RelayNote forwards a member's free-text message to the admins.
func (e *Engine) RelayNote(ctx context.Context, member models.Member, text string) (string, []notify.Notification, error) {
	admins, err := e.roster.ListAdmins(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list admins: %w", err)
	}

	notifications := []notify.Notification{{
		To:   admins,
		Text: fmt.Sprintf("%s said: %s", member.Name, text),
	}}
	return "Message passed along to the organizers.", notifications, nil
}
