package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowsUpToLimit(t *testing.T) {
	l := New(nil)
	for i := 1; i <= maxPerWindow; i++ {
		assert.True(t, l.Allow("test_app"), "notification %d should be allowed", i)
	}
}

func TestBlocksOverLimit(t *testing.T) {
	l := New(nil)
	for i := 0; i < maxPerWindow; i++ {
		l.Allow("test_app")
	}
	assert.False(t, l.Allow("test_app"), "the 61st notification should be blocked")
}

func TestResetsAfterWindowExpires(t *testing.T) {
	l := New(nil)
	for i := 0; i < maxPerWindow; i++ {
		l.Allow("test_app")
	}

	l.mu.Lock()
	l.limits["test_app"].windowStart = time.Now().Add(-61 * time.Second)
	l.mu.Unlock()

	assert.True(t, l.Allow("test_app"), "should allow again once the window has elapsed")
}

func TestPerAppIsolation(t *testing.T) {
	l := New(nil)
	for i := 0; i < maxPerWindow; i++ {
		l.Allow("app1")
	}
	assert.False(t, l.Allow("app1"))
	assert.True(t, l.Allow("app2"), "app2 must not be affected by app1's limit")
}

func TestCleanupRemovesExpiredEntries(t *testing.T) {
	l := New(nil)
	l.Allow("app1")
	l.Allow("app2")
	l.Allow("app3")
	require.Equal(t, 3, l.Tracked())

	l.mu.Lock()
	for _, e := range l.limits {
		e.windowStart = time.Now().Add(-61 * time.Second)
	}
	l.mu.Unlock()

	l.mu.Lock()
	l.cleanupLocked()
	l.mu.Unlock()

	assert.Equal(t, 0, l.Tracked())
}

func TestEmptyAppNameIsTrackedLikeAnyOther(t *testing.T) {
	l := New(nil)
	for i := 1; i <= maxPerWindow; i++ {
		assert.True(t, l.Allow(""), "empty app_name notification %d should be allowed", i)
	}
	assert.False(t, l.Allow(""))
}

func TestReplacementsBypassTheLimiterAtTheCallerLevel(t *testing.T) {
	// The limiter itself has no notion of "replaces_id" — replacements
	// bypass the limiter entirely, which the D-Bus ingress server
	// implements by simply not calling Allow for a replace. Nothing to assert here
	// beyond Allow being a pure per-accept counter.
	l := New(nil)
	for i := 0; i < maxPerWindow; i++ {
		l.Allow("app")
	}
	assert.Equal(t, 1, l.Tracked())
}

func TestTrackingCapForcesCleanupBeforeRejectingNewSenders(t *testing.T) {
	l := New(nil)

	// Fill the table with maxTrackedApps distinct senders, all expired.
	l.mu.Lock()
	expired := time.Now().Add(-61 * time.Second)
	for i := 0; i < maxTrackedApps; i++ {
		l.limits[fmt.Sprintf("app-%d", i)] = &entry{windowStart: expired, count: 1}
	}
	l.mu.Unlock()

	// A brand-new sender should be allowed: cleanup sweeps the expired
	// entries first, freeing room.
	assert.True(t, l.Allow("new-app"))
	assert.LessOrEqual(t, l.Tracked(), maxTrackedApps)
}

func TestTrackingCapRejectsNewSendersWhenStillFull(t *testing.T) {
	l := New(nil)

	l.mu.Lock()
	now := time.Now()
	for i := 0; i < maxTrackedApps; i++ {
		l.limits[fmt.Sprintf("app-%d", i)] = &entry{windowStart: now, count: 1}
	}
	l.mu.Unlock()

	assert.False(t, l.Allow("one-sender-too-many"), "table is full of live windows; new sender must be rejected")
}

func TestCleanupTriggersEveryHundredAccepts(t *testing.T) {
	l := New(nil)

	// Set the accept counter one short of cleanupEvery with an
	// already-expired window in the table, make one more accepted call,
	// then verify the sweep fired by checking the stale entry is gone.
	l.mu.Lock()
	l.accept = cleanupEvery - 1
	l.limits["stale"] = &entry{windowStart: time.Now().Add(-61 * time.Second), count: 1}
	l.mu.Unlock()

	l.Allow("trigger")
	assert.Nil(t, l.limits["stale"], "stale entry should have been swept on the 100th accept")
}
