package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"hoops-sms/internal/clock"
	"hoops-sms/internal/models"
	"hoops-sms/internal/storage"
)

// Tuesday noon; the next Thursday 8 PM game is 2017-09-07 20:00 UTC.
var testNow = time.Date(2017, 9, 5, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()

	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, m := range []models.Member{
		{Name: "Dana", Phone: "+15550002222", Admin: true},
		{Name: "Josh", Phone: "+15550001111"},
		{Name: "Kim", Phone: "+15550003333"},
	} {
		require.NoError(t, store.Members().Create(ctx, m))
	}

	eng := New(store.Members(), store.RSVPs(), store.Polls(), clock.New(4, 20, 0, time.UTC), zerolog.Nop())
	eng.now = func() time.Time { return testNow }
	return eng, store
}

func nextGame() time.Time {
	return time.Date(2017, 9, 7, 20, 0, 0, 0, time.UTC)
}

func member(name, phone string) models.Member {
	return models.Member{Name: name, Phone: phone}
}

func TestSubmitRSVPWritesEffectiveRecord(t *testing.T) {
	t.Parallel()
	eng, store := newTestEngine(t)
	ctx := context.Background()

	reply, notifications, err := eng.SubmitRSVP(ctx, member("Josh", "+15550001111"), nextGame(), models.ReplyYes, 2)
	require.NoError(t, err)
	require.Equal(t, "Thank you for RSVPing Yes with 2 sub(s) to the next game!", reply)
	require.Empty(t, notifications, "first-time RSVP must not notify admins")

	rec, err := store.RSVPs().Latest(ctx, nextGame(), "Josh")
	require.NoError(t, err)
	require.Equal(t, models.ReplyYes, rec.Reply)
	require.Equal(t, 2, rec.SubCount)
}

func TestSubmitRSVPChangeDetection(t *testing.T) {
	t.Parallel()
	eng, store := newTestEngine(t)
	ctx := context.Background()
	josh := member("Josh", "+15550001111")

	_, notifications, err := eng.SubmitRSVP(ctx, josh, nextGame(), models.ReplyYes, 0)
	require.NoError(t, err)
	require.Empty(t, notifications)

	t.Run("repeating the same answer stays quiet", func(t *testing.T) {
		_, notifications, err := eng.SubmitRSVP(ctx, josh, nextGame(), models.ReplyYes, 0)
		require.NoError(t, err)
		require.Empty(t, notifications)
	})

	t.Run("a flipped answer notifies the admins once", func(t *testing.T) {
		_, notifications, err := eng.SubmitRSVP(ctx, josh, nextGame(), models.ReplyNo, 0)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		require.Equal(t, "Josh changed RSVP to no with 0 subs!", notifications[0].Text)
		require.Len(t, notifications[0].To, 1)
		require.Equal(t, "Dana", notifications[0].To[0].Name)
	})

	t.Run("a changed sub count also notifies", func(t *testing.T) {
		_, notifications, err := eng.SubmitRSVP(ctx, josh, nextGame(), models.ReplyNo, 3)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		require.Equal(t, "Josh changed RSVP to no with 3 subs!", notifications[0].Text)
	})

	// Every submission above appended; nothing was overwritten.
	history, err := store.RSVPs().ListByGame(ctx, nextGame())
	require.NoError(t, err)
	require.Len(t, history, 4)
}

func TestSubmitRSVPValidation(t *testing.T) {
	t.Parallel()
	eng, store := newTestEngine(t)
	ctx := context.Background()

	_, _, err := eng.SubmitRSVP(ctx, member("Josh", "+15550001111"), nextGame(), models.Reply("maybe"), 0)
	require.ErrorIs(t, err, ErrInvalidReply)

	_, _, err = eng.SubmitRSVP(ctx, member("Josh", "+15550001111"), nextGame(), models.ReplyYes, -1)
	require.ErrorIs(t, err, ErrInvalidReply)

	history, err := store.RSVPs().ListByGame(ctx, nextGame())
	require.NoError(t, err)
	require.Empty(t, history, "validation failures must not touch the ledger")
}

func TestResolveMember(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	m, err := eng.ResolveMember(ctx, "+15550001111")
	require.NoError(t, err)
	require.Equal(t, "Josh", m.Name)

	_, err = eng.ResolveMember(ctx, "+15559999999")
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestStatusReport(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, _, err := eng.SubmitRSVP(ctx, member("Dana", "+15550002222"), nextGame(), models.ReplyYes, 0)
	require.NoError(t, err)
	_, _, err = eng.SubmitRSVP(ctx, member("Josh", "+15550001111"), nextGame(), models.ReplyNo, 0)
	require.NoError(t, err)
	_, _, err = eng.SubmitRSVP(ctx, member("Kim", "+15550003333"), nextGame(), models.ReplyYes, 2)
	require.NoError(t, err)

	report, err := eng.StatusReport(ctx, nextGame())
	require.NoError(t, err)

	require.Contains(t, report, "Yes: 2 No: 1 Subs: 2 (Total Players: 4)")
	require.Contains(t, report, "Dana: Yes")
	require.Contains(t, report, "Josh: No")
	require.Contains(t, report, "Kim: Yes and is bringing 2 subs")

	t.Run("re-query is idempotent", func(t *testing.T) {
		again, err := eng.StatusReport(ctx, nextGame())
		require.NoError(t, err)
		require.Equal(t, report, again)
	})

	t.Run("effective record wins over history", func(t *testing.T) {
		_, _, err := eng.SubmitRSVP(ctx, member("Josh", "+15550001111"), nextGame(), models.ReplyYes, 1)
		require.NoError(t, err)

		report, err := eng.StatusReport(ctx, nextGame())
		require.NoError(t, err)
		require.Contains(t, report, "Yes: 3 No: 0 Subs: 3 (Total Players: 6)")
		require.Contains(t, report, "Josh: Yes and is bringing 1 sub\n")
	})
}

func TestReminderTargetsNonResponders(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	// Only Dana has RSVP'd; the answer itself does not matter.
	_, _, err := eng.SubmitRSVP(ctx, member("Dana", "+15550002222"), nextGame(), models.ReplyNo, 0)
	require.NoError(t, err)

	confirmation, notifications, err := eng.Reminder(ctx)
	require.NoError(t, err)
	require.Equal(t, "RSVP poll has been sent to 2 players.", confirmation)
	require.Len(t, notifications, 2)

	var names []string
	for _, n := range notifications {
		require.Len(t, n.To, 1)
		names = append(names, n.To[0].Name)
		require.Contains(t, n.Text, "will you be playing this Thursday at 8:00 PM?")
	}
	require.ElementsMatch(t, []string{"Josh", "Kim"}, names)
}

func TestBroadcastInvitePersonalizesEachMessage(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)

	targets := []models.Member{member("Josh", "+15550001111"), member("Kim", "+15550003333")}
	confirmation, notifications := eng.BroadcastInvite(targets)

	require.Equal(t, "RSVP poll has been sent to 2 players.", confirmation)
	require.Len(t, notifications, 2)
	require.Contains(t, notifications[0].Text, "Josh, will you be playing this Thursday at 8:00 PM?")
	require.Contains(t, notifications[0].Text, "'yes 2' for two subs.")
	require.Contains(t, notifications[1].Text, "Kim, ")
}

func TestStartPoll(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	confirmation, notifications, err := eng.StartPoll(ctx)
	require.NoError(t, err)
	require.Equal(t, "RSVP poll has been sent to 3 players.", confirmation)
	require.Len(t, notifications, 3)

	t.Run("reopening is a reported conflict", func(t *testing.T) {
		_, notifications, err := eng.StartPoll(ctx)
		require.ErrorIs(t, err, ErrPollAlreadyOpen)
		require.Empty(t, notifications, "a conflicting poll must send nothing")
	})
}

func TestBroadcastMessage(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	t.Run("relays verbatim to every member", func(t *testing.T) {
		confirmation, notifications, err := eng.BroadcastMessage(ctx, "Fees are due Thursday")
		require.NoError(t, err)
		require.Equal(t, `Member broadcast sent: "Fees are due Thursday"`, confirmation)
		require.Len(t, notifications, 3)
		for _, n := range notifications {
			require.Equal(t, "Fees are due Thursday", n.Text)
		}
	})

	t.Run("empty text sends nothing", func(t *testing.T) {
		confirmation, notifications, err := eng.BroadcastMessage(ctx, "   ")
		require.NoError(t, err)
		require.Equal(t, "Message not sent", confirmation)
		require.Empty(t, notifications)
	})
}

func TestRelayNote(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	reply, notifications, err := eng.RelayNote(ctx, member("Josh", "+15550001111"), "running 10 late")
	require.NoError(t, err)
	require.Equal(t, "Message passed along to the organizers.", reply)
	require.Len(t, notifications, 1)
	require.Equal(t, "Josh said: running 10 late", notifications[0].Text)
	require.Len(t, notifications[0].To, 1)
	require.Equal(t, "Dana", notifications[0].To[0].Name)
}

func TestExecuteUnrecognizedIsSilent(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	reply, notifications, err := eng.Execute(ctx, member("Josh", "+15550001111"), models.Intent{Kind: models.IntentUnrecognized})
	require.NoError(t, err)
	require.Empty(t, reply)
	require.Empty(t, notifications)
}
