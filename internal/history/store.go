package history

import (
	"crypto/rand"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/notifd/internal/notification"
)

// newHistoryID mints a stable identifier for a notification's place in
// history, independent of the wire-visible u32 id (which the daemon
// allocates and a sender may reuse via replaces_id).
func newHistoryID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}

// DefaultHiddenBudgetBytes bounds the hidden queue's estimated memory
// footprint.
const DefaultHiddenBudgetBytes = 50 * 1024 * 1024

// Store holds the visible (on-screen) and hidden (dismissed/expired)
// notification queues. All mutation happens from the single pipeline
// task, but the mutex keeps Store safe to read from
// concurrently-running applet-IPC handlers.
type Store struct {
	mu sync.Mutex

	visible []*notification.Notification
	hidden  []*notification.Notification // hidden[0] is the newest

	maxNotifications int
	maxPerApp        int
	hiddenBudget     int64
	hiddenSize       int64

	logger *slog.Logger
}

// New creates a Store with the given visible-queue caps and the default
// hidden-queue memory budget.
func New(maxNotifications, maxPerApp int) *Store {
	return &Store{
		maxNotifications: maxNotifications,
		maxPerApp:        maxPerApp,
		hiddenBudget:     DefaultHiddenBudgetBytes,
		logger:           slog.Default(),
	}
}

// Visible returns a snapshot of the currently visible queue, in display
// order.
func (s *Store) Visible() []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notification.Notification, len(s.visible))
	copy(out, s.visible)
	return out
}

// Hidden returns a snapshot of the hidden history, newest first.
func (s *Store) Hidden() []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notification.Notification, len(s.hidden))
	copy(out, s.hidden)
	return out
}

// Push inserts n into the visible queue at the position dictated by
// (urgency desc, received-at asc), then enforces the per-app cap. Any
// notification displaced by the per-app cap is either reinserted (if the
// visible queue still has room) or moved into hidden.
func (s *Store) Push(n *notification.Notification) {
	if n.HistoryID == "" {
		n.HistoryID = newHistoryID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertSortedLocked(n)
	s.groupByAppLocked()
}

// Replace overwrites the notification with the same id, recomputing its
// sort position; if no such id exists, it behaves like Push. The
// replacement inherits the original's HistoryID so the two wire-visible
// Notify calls are recognizable as the same logical notification.
func (s *Store) Replace(n *notification.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range s.visible {
		if v.ID == n.ID {
			n.HistoryID = v.HistoryID
			s.visible = append(s.visible[:i], s.visible[i+1:]...)
			s.insertSortedLocked(n)
			s.groupByAppLocked()
			return
		}
	}

	if n.HistoryID == "" {
		n.HistoryID = newHistoryID()
	}
	s.insertSortedLocked(n)
	s.groupByAppLocked()
}

// insertSortedLocked inserts n into s.visible at its binary-search
// position under notification.Less. Callers must hold s.mu.
func (s *Store) insertSortedLocked(n *notification.Notification) {
	pos := sort.Search(len(s.visible), func(i int) bool {
		return !notification.Less(s.visible[i], n)
	})
	s.visible = append(s.visible, nil)
	copy(s.visible[pos+1:], s.visible[pos:])
	s.visible[pos] = n
}

// groupByAppLocked enforces the per-app cap by scanning the sorted queue
// and counting notifications per app: every notification beyond the
// maxPerApp-th for its app (in display order) is displaced.
// Displaced items are reinserted if the queue still has room, otherwise
// moved to hidden. Callers must hold s.mu.
func (s *Store) groupByAppLocked() {
	if s.maxPerApp <= 0 || len(s.visible) == 0 {
		return
	}

	var kept []*notification.Notification
	var displaced []*notification.Notification

	counts := make(map[string]int)
	for _, n := range s.visible {
		counts[n.AppName]++
		if counts[n.AppName] > s.maxPerApp {
			displaced = append(displaced, n)
		} else {
			kept = append(kept, n)
		}
	}
	s.visible = kept

	for _, n := range displaced {
		if s.maxNotifications <= 0 || len(s.visible) < s.maxNotifications {
			s.insertSortedLocked(n)
		} else {
			s.moveToHiddenLocked(n)
		}
	}
}

// Expire moves the notification with the given id from visible into
// hidden, then shrinks hidden from the tail until the memory budget is
// satisfied. A transient notification is removed from visible without
// entering hidden. Reports whether a notification was found.
func (s *Store) Expire(id uint32) (*notification.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.visible {
		if n.ID == id {
			s.visible = append(s.visible[:i], s.visible[i+1:]...)
			s.moveToHiddenLocked(n)
			return n, true
		}
	}
	return nil, false
}

// moveToHiddenLocked pushes n to the front of hidden and trims the tail
// until the running estimated size fits hiddenBudget. Transient
// notifications are dropped instead of kept. Callers must hold s.mu.
func (s *Store) moveToHiddenLocked(n *notification.Notification) {
	if n.Transient() {
		return
	}
	s.hidden = append([]*notification.Notification{n}, s.hidden...)
	s.hiddenSize += int64(n.EstimatedSize())

	var trimmed int
	for s.hiddenSize > s.hiddenBudget && len(s.hidden) > 0 {
		last := s.hidden[len(s.hidden)-1]
		s.hidden = s.hidden[:len(s.hidden)-1]
		s.hiddenSize -= int64(last.EstimatedSize())
		trimmed++
	}

	if trimmed > 0 && s.logger != nil {
		s.logger.Debug("hidden history trimmed to fit memory budget",
			"trimmed", trimmed,
			"size", humanize.Bytes(uint64(s.hiddenSize)),
			"budget", humanize.Bytes(uint64(s.hiddenBudget)))
	}
}

// Close removes the notification with the given id from either queue.
// It reports whether the notification was found and whether it was
// removed from the visible queue specifically (callers use this to
// decide whether to forward a Dismissed event upstream).
func (s *Store) Close(id uint32) (n *notification.Notification, wasVisible bool, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range s.visible {
		if v.ID == id {
			s.visible = append(s.visible[:i], s.visible[i+1:]...)
			return v, true, true
		}
	}
	for i, v := range s.hidden {
		if v.ID == id {
			s.hiddenSize -= int64(v.EstimatedSize())
			s.hidden = append(s.hidden[:i], s.hidden[i+1:]...)
			return v, false, true
		}
	}
	return nil, false, false
}

// Find searches visible then hidden for the given id.
func (s *Store) Find(id uint32) (*notification.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.visible {
		if v.ID == id {
			return v, true
		}
	}
	for _, v := range s.hidden {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// HiddenSize returns the current estimated memory usage of the hidden
// queue, for metrics and tests.
func (s *Store) HiddenSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hiddenSize
}
