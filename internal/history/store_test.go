package history

import (
	"testing"
	"time"

	"github.com/jmylchreest/notifd/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification(id uint32, app string, urgency int, at time.Time) *notification.Notification {
	return &notification.Notification{
		ID:      id,
		AppName: app,
		Summary: "summary",
		Hints: []notification.Hint{
			{Kind: notification.HintUrgency, Uint: uint32(urgency)},
		},
		ReceivedAt: at,
	}
}

func TestPushOrdersByUrgencyThenTime(t *testing.T) {
	s := New(10, 10)
	base := time.Now()

	s.Push(testNotification(1, "a", notification.UrgencyNormal, base))
	s.Push(testNotification(2, "a", notification.UrgencyCritical, base.Add(time.Second)))
	s.Push(testNotification(3, "a", notification.UrgencyLow, base.Add(2*time.Second)))

	visible := s.Visible()
	require.Len(t, visible, 3)
	assert.Equal(t, uint32(2), visible[0].ID, "critical urgency sorts first")
	assert.Equal(t, uint32(1), visible[1].ID)
	assert.Equal(t, uint32(3), visible[2].ID)
}

func TestPushBreaksTiesByReceivedAtAscending(t *testing.T) {
	s := New(10, 10)
	base := time.Now()

	s.Push(testNotification(1, "a", notification.UrgencyNormal, base.Add(time.Second)))
	s.Push(testNotification(2, "a", notification.UrgencyNormal, base))

	visible := s.Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, uint32(2), visible[0].ID, "earlier received_at sorts first among equal urgency")
}

func TestReplaceOverwritesByID(t *testing.T) {
	s := New(10, 10)
	base := time.Now()

	s.Push(testNotification(1, "a", notification.UrgencyNormal, base))
	updated := testNotification(1, "a", notification.UrgencyCritical, base)
	updated.Summary = "updated"
	s.Replace(updated)

	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "updated", visible[0].Summary)
}

func TestReplaceFallsBackToPushWhenMissing(t *testing.T) {
	s := New(10, 10)
	s.Replace(testNotification(5, "a", notification.UrgencyNormal, time.Now()))

	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, uint32(5), visible[0].ID)
}

func TestGroupByAppCapsPerAppAndReinsertsWithRoom(t *testing.T) {
	s := New(10, 2) // max_per_app = 2, plenty of room in max_notifications
	base := time.Now()

	// Three from "a" at decreasing urgency (so they sort consecutively).
	s.Push(testNotification(1, "a", notification.UrgencyCritical, base))
	s.Push(testNotification(2, "a", notification.UrgencyNormal, base))
	s.Push(testNotification(3, "a", notification.UrgencyLow, base))

	visible := s.Visible()
	assert.Len(t, visible, 3, "displaced item should be reinserted since max_notifications has room")
}

func TestGroupByAppMovesOverflowToHiddenWhenNoRoom(t *testing.T) {
	s := New(2, 1) // max_notifications = 2, max_per_app = 1
	base := time.Now()

	s.Push(testNotification(1, "a", notification.UrgencyCritical, base))
	s.Push(testNotification(2, "b", notification.UrgencyNormal, base))
	// This third push fills visible to max_notifications already (2), so
	// the per-app cap's displaced third "a" notification has no room and
	// should land in hidden instead.
	s.Push(testNotification(3, "a", notification.UrgencyLow, base))

	visible := s.Visible()
	hidden := s.Hidden()
	assert.LessOrEqual(t, len(visible), 2)
	assert.NotEmpty(t, hidden)
}

func TestExpireMovesVisibleToHidden(t *testing.T) {
	s := New(10, 10)
	n := testNotification(1, "a", notification.UrgencyNormal, time.Now())
	s.Push(n)

	expired, ok := s.Expire(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), expired.ID)
	assert.Empty(t, s.Visible())
	assert.Len(t, s.Hidden(), 1)
}

func TestExpireReturnsFalseWhenMissing(t *testing.T) {
	s := New(10, 10)
	_, ok := s.Expire(999)
	assert.False(t, ok)
}

func TestHiddenBudgetTrimsFromTail(t *testing.T) {
	s := New(10, 10)
	s.hiddenBudget = 400 // room for one ~288-byte entry but not two

	base := time.Now()
	n1 := testNotification(1, "a", notification.UrgencyNormal, base)
	n1.Body = string(make([]byte, 80))
	s.Push(n1)
	_, _ = s.Expire(1)

	n2 := testNotification(2, "a", notification.UrgencyNormal, base.Add(time.Second))
	n2.Body = string(make([]byte, 80))
	s.Push(n2)
	_, _ = s.Expire(2)

	hidden := s.Hidden()
	require.Len(t, hidden, 1, "oldest hidden entry should have been trimmed to fit the budget")
	assert.Equal(t, uint32(2), hidden[0].ID, "newest entry survives")
}

func TestCloseRemovesFromVisibleAndReportsSource(t *testing.T) {
	s := New(10, 10)
	s.Push(testNotification(1, "a", notification.UrgencyNormal, time.Now()))

	n, wasVisible, found := s.Close(1)
	require.True(t, found)
	assert.True(t, wasVisible)
	assert.Equal(t, uint32(1), n.ID)
	assert.Empty(t, s.Visible())
}

func TestCloseRemovesFromHidden(t *testing.T) {
	s := New(10, 10)
	s.Push(testNotification(1, "a", notification.UrgencyNormal, time.Now()))
	_, _ = s.Expire(1)

	n, wasVisible, found := s.Close(1)
	require.True(t, found)
	assert.False(t, wasVisible)
	assert.Equal(t, uint32(1), n.ID)
	assert.Empty(t, s.Hidden())
}

func TestCloseReportsNotFound(t *testing.T) {
	s := New(10, 10)
	_, _, found := s.Close(42)
	assert.False(t, found)
}

func TestPushAssignsHistoryID(t *testing.T) {
	s := New(10, 10)
	n := testNotification(1, "a", notification.UrgencyNormal, time.Now())
	s.Push(n)

	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.NotEmpty(t, visible[0].HistoryID)
}

func TestReplaceInheritsHistoryIDFromOriginal(t *testing.T) {
	s := New(10, 10)
	base := time.Now()

	s.Push(testNotification(1, "a", notification.UrgencyNormal, base))
	original := s.Visible()[0].HistoryID
	require.NotEmpty(t, original)

	updated := testNotification(1, "a", notification.UrgencyCritical, base)
	updated.Summary = "updated"
	s.Replace(updated)

	assert.Equal(t, original, s.Visible()[0].HistoryID, "replaces_id chain keeps one stable history id")
}

func TestFindSearchesVisibleThenHidden(t *testing.T) {
	s := New(10, 10)
	s.Push(testNotification(1, "a", notification.UrgencyNormal, time.Now()))
	s.Push(testNotification(2, "b", notification.UrgencyNormal, time.Now()))
	_, _ = s.Expire(2)

	n1, ok := s.Find(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), n1.ID)

	n2, ok := s.Find(2)
	require.True(t, ok)
	assert.Equal(t, uint32(2), n2.ID)

	_, ok = s.Find(999)
	assert.False(t, ok)
}
