package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"hoops-sms/internal/models"
)

type flakySender struct {
	mu        sync.Mutex
	failPhone string
	delivered []string
}

func (f *flakySender) Send(_ context.Context, member models.Member, _ string) error {
	if member.Phone == f.failPhone {
		return errors.New("gateway rejected message")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, member.Name)
	return nil
}

func TestDispatchContinuesPastFailures(t *testing.T) {
	t.Parallel()

	sender := &flakySender{failPhone: "+1222"}
	d := NewDispatcher(sender, zerolog.Nop())

	members := []models.Member{
		{Name: "Josh", Phone: "+1111"},
		{Name: "Dana", Phone: "+1222"},
		{Name: "Kim", Phone: "+1333"},
	}
	failed := d.Dispatch(context.Background(), []Notification{{To: members, Text: "game on"}})

	require.Equal(t, 1, failed)
	require.Equal(t, []string{"Josh", "Kim"}, sender.delivered, "failure must not abort the rest of the fan-out")
}

func TestDispatchMultipleNotifications(t *testing.T) {
	t.Parallel()

	sender := &flakySender{}
	d := NewDispatcher(sender, zerolog.Nop())

	failed := d.Dispatch(context.Background(), []Notification{
		{To: []models.Member{{Name: "Josh", Phone: "+1111"}}, Text: "first"},
		{To: []models.Member{{Name: "Kim", Phone: "+1333"}}, Text: "second"},
	})

	require.Zero(t, failed)
	require.Equal(t, []string{"Josh", "Kim"}, sender.delivered)
}
