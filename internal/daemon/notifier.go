package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/notifd/internal/notification"
)

// NotificationLevel indicates the urgency of an internal (self) notification.
type NotificationLevel int

const (
	NotificationLevelInfo NotificationLevel = iota
	NotificationLevelWarning
	NotificationLevelError
)

// InternalNotifier posts the daemon's own operational events (config
// reload, config error, audio error) back through the same Notify
// ingestion path external callers use, tagged Transient so they never
// enter history. A per-key minimum interval keeps a flapping condition
// from flooding the visible queue.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	notifyHandler func(n *notification.Notification) uint32

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	enabled bool
}

// NewInternalNotifier creates an InternalNotifier. Call SetNotifyHandler
// before it can deliver anything.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		enabled:        true,
	}
}

// SetNotifyHandler sets the function invoked to actually enqueue the
// notification. Normally (*dbusface.Server).NotifyInternal.
func (n *InternalNotifier) SetNotifyHandler(handler func(n *notification.Notification) uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifyHandler = handler
}

// SetEnabled enables or disables internal notifications entirely.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Notify sends an internal notification if not rate-limited. key is used
// for the per-event minimum interval; the same key won't fire twice within
// minInterval.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return
	}
	if n.notifyHandler == nil {
		n.logger.Debug("internal notification skipped: no handler", "summary", summary)
		return
	}
	if lastTime, ok := n.lastNotifyTime[key]; ok {
		if time.Since(lastTime) < n.minInterval {
			n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
			return
		}
	}
	n.lastNotifyTime[key] = time.Now()

	urgency := uint32(notification.UrgencyNormal)
	icon := "dialog-information"
	switch level {
	case NotificationLevelInfo:
		urgency = notification.UrgencyLow
		icon = "dialog-information"
	case NotificationLevelWarning:
		urgency = notification.UrgencyNormal
		icon = "dialog-warning"
	case NotificationLevelError:
		urgency = notification.UrgencyCritical
		icon = "dialog-error"
	}

	note := &notification.Notification{
		AppName: "notifd",
		AppIcon: icon,
		Summary: summary,
		Body:    body,
		Hints: []notification.Hint{
			{Kind: notification.HintUrgency, Uint: urgency},
			{Kind: notification.HintTransient, Bool: true},
			{Kind: notification.HintDesktopEntry, String: "notifd"},
		},
		ExpireTimeoutMs: 5000,
	}

	n.logger.Debug("sending internal notification", "key", key, "summary", summary, "level", level)
	_ = n.notifyHandler(note)
}

// NotifyConfigReloaded reports a successful hot-reload of the config file.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify("config-reload", "Configuration reloaded",
		"notifd configuration has been reloaded.", NotificationLevelInfo)
}

// NotifyConfigError reports a config file that failed validation on reload.
// The previously loaded configuration remains in effect.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration error",
		"Failed to reload configuration: "+err.Error(), NotificationLevelWarning)
}

// NotifyAudioError reports a sound playback failure.
func (n *InternalNotifier) NotifyAudioError(err error) {
	n.Notify("audio-error", "Audio error",
		"Failed to play notification sound: "+err.Error(), NotificationLevelWarning)
}

// NotifyStartup reports that the daemon has come up and claimed the bus name.
func (n *InternalNotifier) NotifyStartup(version string) {
	n.Notify("startup", "notifd started",
		"Notification daemon "+version+" is now running.", NotificationLevelInfo)
}
