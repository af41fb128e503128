package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/notifd/internal/history"
	"github.com/jmylchreest/notifd/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	mu               sync.Mutex
	closed           []uint32
	closedReasons    []notification.CloseReason
	actionsInvoked   []string
	activationTokens []string
}

func (f *fakeEmitter) EmitNotificationClosed(id uint32, reason notification.CloseReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	f.closedReasons = append(f.closedReasons, reason)
	return nil
}

func (f *fakeEmitter) EmitActionInvoked(id uint32, actionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actionsInvoked = append(f.actionsInvoked, actionKey)
	return nil
}

func (f *fakeEmitter) EmitActivationToken(id uint32, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activationTokens = append(f.activationTokens, token)
	return nil
}

func testNotification(id uint32) *notification.Notification {
	return &notification.Notification{
		ID:         id,
		AppName:    "app",
		Summary:    "summary",
		ReceivedAt: time.Now(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEffectiveTimeoutZeroIsPersistent(t *testing.T) {
	n := testNotification(1)
	n.ExpireTimeoutMs = 0
	_, persistent := effectiveTimeout(n, TimeoutConfig{NormalMs: 5000})
	assert.True(t, persistent)
}

func TestEffectiveTimeoutNegativeUsesUrgencyCap(t *testing.T) {
	n := testNotification(1)
	n.ExpireTimeoutMs = -1
	d, persistent := effectiveTimeout(n, TimeoutConfig{NormalMs: 5000})
	require.False(t, persistent)
	assert.Equal(t, 5*time.Second, d)
}

func TestEffectiveTimeoutNegativeWithNoCapIsPersistent(t *testing.T) {
	n := testNotification(1)
	n.Hints = []notification.Hint{{Kind: notification.HintUrgency, Uint: notification.UrgencyCritical}}
	n.ExpireTimeoutMs = -1
	_, persistent := effectiveTimeout(n, TimeoutConfig{UrgentMs: 0})
	assert.True(t, persistent)
}

func TestEffectiveTimeoutClampsToLowerOfRequestAndCap(t *testing.T) {
	n := testNotification(1)
	n.ExpireTimeoutMs = 10000
	d, persistent := effectiveTimeout(n, TimeoutConfig{NormalMs: 3000})
	require.False(t, persistent)
	assert.Equal(t, 3*time.Second, d)
}

func newTestDriver() (*Driver, *fakeEmitter) {
	store := history.New(10, 10)
	emitter := &fakeEmitter{}
	d := New(store, TimeoutConfig{LowMs: 3000, NormalMs: 5000}, emitter, nil, nil, nil)
	return d, emitter
}

func TestPushMakesNotificationVisible(t *testing.T) {
	d, _ := newTestDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	n := testNotification(1)
	n.ExpireTimeoutMs = 0 // sticky, no auto-expiry to race against
	d.Commands() <- Command{Kind: CmdNotification, Notification: n}

	waitFor(t, func() bool { return len(d.store.Visible()) == 1 })
}

func TestCloseNotificationEmitsSignalAndRemovesFromVisible(t *testing.T) {
	d, emitter := newTestDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	n := testNotification(1)
	n.ExpireTimeoutMs = 0
	d.Commands() <- Command{Kind: CmdNotification, Notification: n}
	waitFor(t, func() bool { return len(d.store.Visible()) == 1 })

	d.Commands() <- Command{Kind: CmdCloseNotification, ID: 1}
	waitFor(t, func() bool { return len(d.store.Visible()) == 0 })

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Len(t, emitter.closed, 1)
	assert.Equal(t, uint32(1), emitter.closed[0])
	assert.Equal(t, notification.CloseReasonCloseNotification, emitter.closedReasons[0])
}

func TestActivatedEmitsTokenThenActionThenClosesNonResident(t *testing.T) {
	d, emitter := newTestDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	n := testNotification(1)
	n.ExpireTimeoutMs = 0
	d.Commands() <- Command{Kind: CmdNotification, Notification: n}
	waitFor(t, func() bool { return len(d.store.Visible()) == 1 })

	d.Commands() <- Command{Kind: CmdActivated, ID: 1, Token: "tok", Action: "default"}
	waitFor(t, func() bool { return len(d.store.Visible()) == 0 })

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Len(t, emitter.activationTokens, 1)
	require.Len(t, emitter.actionsInvoked, 1)
	require.Len(t, emitter.closed, 1)
	assert.Equal(t, "tok", emitter.activationTokens[0])
	assert.Equal(t, "default", emitter.actionsInvoked[0])
	assert.Equal(t, notification.CloseReasonDismissed, emitter.closedReasons[0])
}

func TestResidentNotificationSurvivesActivation(t *testing.T) {
	d, _ := newTestDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	n := testNotification(1)
	n.ExpireTimeoutMs = 0
	n.Hints = []notification.Hint{{Kind: notification.HintResident, Bool: true}}
	d.Commands() <- Command{Kind: CmdNotification, Notification: n}
	waitFor(t, func() bool { return len(d.store.Visible()) == 1 })

	d.Commands() <- Command{Kind: CmdActivated, ID: 1, Action: "default"}
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, d.store.Visible(), 1, "resident notification must not be closed by activation")
}

func TestGetHistoryRepliesWithHiddenQueue(t *testing.T) {
	d, _ := newTestDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	n := testNotification(1)
	n.ExpireTimeoutMs = 0
	d.Commands() <- Command{Kind: CmdNotification, Notification: n}
	waitFor(t, func() bool { return len(d.store.Visible()) == 1 })
	d.Commands() <- Command{Kind: CmdDismissed, ID: 1}
	waitFor(t, func() bool { return len(d.store.Hidden()) == 1 })

	reply := make(chan []*notification.Notification, 1)
	d.Commands() <- Command{Kind: CmdGetHistory, HistoryReply: reply}

	select {
	case hist := <-reply:
		require.Len(t, hist, 1)
		assert.Equal(t, uint32(1), hist[0].ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for history reply")
	}
}

func TestExpiryMovesNotificationToHidden(t *testing.T) {
	d, emitter := newTestDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	n := testNotification(1)
	n.ExpireTimeoutMs = 50
	d.Commands() <- Command{Kind: CmdNotification, Notification: n}

	waitFor(t, func() bool { return len(d.store.Hidden()) == 1 })
	assert.Empty(t, d.store.Visible())

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Len(t, emitter.closedReasons, 1)
	assert.Equal(t, notification.CloseReasonExpired, emitter.closedReasons[0])
}
