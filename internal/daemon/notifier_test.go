package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/notifd/internal/notification"
)

func TestNotifySkippedWithoutHandler(t *testing.T) {
	n := NewInternalNotifier(nil)
	assert.NotPanics(t, func() { n.NotifyStartup("1.0.0") })
}

func TestNotifyDeliversThroughHandler(t *testing.T) {
	n := NewInternalNotifier(nil)
	var got *notification.Notification
	n.SetNotifyHandler(func(note *notification.Notification) uint32 {
		got = note
		return 1
	})

	n.NotifyStartup("1.0.0")
	require.NotNil(t, got)
	assert.Equal(t, "notifd", got.AppName)
	assert.True(t, got.Transient())
	assert.Contains(t, got.Body, "1.0.0")
}

func TestNotifyRateLimitsSameKey(t *testing.T) {
	n := NewInternalNotifier(nil)
	n.minInterval = 50 * time.Millisecond

	var calls int
	n.SetNotifyHandler(func(note *notification.Notification) uint32 {
		calls++
		return 1
	})

	n.NotifyConfigReloaded()
	n.NotifyConfigReloaded()
	assert.Equal(t, 1, calls, "second call within minInterval should be suppressed")

	time.Sleep(60 * time.Millisecond)
	n.NotifyConfigReloaded()
	assert.Equal(t, 2, calls, "call after minInterval elapses should go through")
}

func TestNotifyDifferentKeysAreIndependent(t *testing.T) {
	n := NewInternalNotifier(nil)
	n.minInterval = time.Minute

	var calls int
	n.SetNotifyHandler(func(note *notification.Notification) uint32 {
		calls++
		return 1
	})

	n.NotifyConfigReloaded()
	n.NotifyAudioError(errors.New("boom"))
	assert.Equal(t, 2, calls)
}

func TestSetEnabledFalseSuppressesAllNotifications(t *testing.T) {
	n := NewInternalNotifier(nil)
	var calls int
	n.SetNotifyHandler(func(note *notification.Notification) uint32 {
		calls++
		return 1
	})

	n.SetEnabled(false)
	n.NotifyStartup("1.0.0")
	assert.Equal(t, 0, calls)
}

func TestNotificationLevelMapsToUrgencyAndIcon(t *testing.T) {
	n := NewInternalNotifier(nil)
	var got *notification.Notification
	n.SetNotifyHandler(func(note *notification.Notification) uint32 {
		got = note
		return 1
	})

	n.Notify("err-key", "oops", "something broke", NotificationLevelError)
	require.NotNil(t, got)
	assert.Equal(t, notification.UrgencyCritical, got.Urgency())
	assert.Equal(t, "dialog-error", got.AppIcon)
}
