package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/notifd/internal/history"
	"github.com/jmylchreest/notifd/internal/notification"
)

// TimeoutConfig holds the per-urgency expiry caps applied on top of a
// notification's own expire_timeout_ms. A zero cap means "no
// cap for this urgency" (the default for Urgent).
type TimeoutConfig struct {
	LowMs    int
	NormalMs int
	UrgentMs int
}

func (c TimeoutConfig) capFor(urgency int) int {
	switch urgency {
	case notification.UrgencyLow:
		return c.LowMs
	case notification.UrgencyCritical:
		return c.UrgentMs
	default:
		return c.NormalMs
	}
}

// effectiveTimeout implements effective timeout =
// min(expire_timeout_ms, per-urgency cap). expire_timeout_ms == 0 is
// sticky (persistent); -1 uses the per-urgency cap verbatim. Returns
// persistent=true when there is no expiry at all.
func effectiveTimeout(n *notification.Notification, cfg TimeoutConfig) (d time.Duration, persistent bool) {
	urgencyCap := cfg.capFor(n.Urgency())

	switch {
	case n.ExpireTimeoutMs == 0:
		return 0, true
	case n.ExpireTimeoutMs < 0:
		if urgencyCap <= 0 {
			return 0, true
		}
		return time.Duration(urgencyCap) * time.Millisecond, false
	default:
		ms := int(n.ExpireTimeoutMs)
		if urgencyCap > 0 && urgencyCap < ms {
			ms = urgencyCap
		}
		return time.Duration(ms) * time.Millisecond, false
	}
}

// SoundPlayer is the audio-side effect a new or replaced notification may
// trigger. Implemented by audio.Manager.
type SoundPlayer interface {
	PlayForUrgency(urgency int) error
}

// Driver is the single goroutine that owns the notification store and
// reacts to Commands. Construct with New and run with Run.
type Driver struct {
	cmdCh   chan Command
	store   *history.Store
	timeout TimeoutConfig
	emitter SignalEmitter
	surface chan<- SurfaceEvent
	sound   SoundPlayer
	logger  *slog.Logger

	mu          sync.Mutex
	timers      map[uint32]*time.Timer
	appletConns []AppletConnection
}

// New creates a Driver. surface may be nil if no on-screen renderer is
// attached (the renderer itself lives outside this daemon); sound may be
// nil to disable audio side effects entirely.
func New(store *history.Store, timeout TimeoutConfig, emitter SignalEmitter, surface chan<- SurfaceEvent, sound SoundPlayer, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		cmdCh:   make(chan Command, 100),
		store:   store,
		timeout: timeout,
		emitter: emitter,
		surface: surface,
		sound:   sound,
		logger:  logger,
		timers:  make(map[uint32]*time.Timer),
	}
}

// Commands returns the channel callers (dbusface) enqueue onto.
func (d *Driver) Commands() chan<- Command {
	return d.cmdCh
}

// SetEmitter binds the signal emitter after construction, for callers that
// need the driver's command channel to build the emitter itself (the
// D-Bus ingress server implements SignalEmitter but is constructed from
// Commands()).
func (d *Driver) SetEmitter(emitter SignalEmitter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emitter = emitter
}

// Run consumes commands until ctx is cancelled. The first action is to
// advertise the command channel to the surface subscriber via a Ready
// event; if surface is nil or the send would block, this is skipped.
func (d *Driver) Run(ctx context.Context) {
	d.sendSurface(SurfaceEvent{Kind: SurfaceReady, Commands: d.cmdCh})

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			for _, t := range d.timers {
				t.Stop()
			}
			d.mu.Unlock()
			return
		case cmd := <-d.cmdCh:
			d.handle(cmd)
		}
	}
}

func (d *Driver) handle(cmd Command) {
	switch cmd.Kind {
	case CmdNotification:
		d.handlePush(cmd.Notification)
	case CmdReplace:
		d.handleReplace(cmd.Notification)
	case CmdCloseNotification:
		d.deleteAndNotify(cmd.ID, notification.CloseReasonCloseNotification)
	case CmdDismissed:
		d.expireAndNotify(cmd.ID, notification.CloseReasonDismissed)
	case CmdClosed:
		d.expireAndNotify(cmd.ID, cmd.Reason)
	case CmdActivated, CmdAppletActivated:
		d.handleActivated(cmd)
	case CmdAppletConn:
		d.mu.Lock()
		d.appletConns = append(d.appletConns, cmd.AppletConn)
		d.mu.Unlock()
	case CmdGetHistory:
		d.handleGetHistory(cmd)
	}
}

func (d *Driver) handlePush(n *notification.Notification) {
	d.store.Push(n)
	d.scheduleTimeout(n)
	d.mirrorAndSound(n)
	d.sendSurface(SurfaceEvent{Kind: SurfaceShow, Notification: n})
}

func (d *Driver) handleReplace(n *notification.Notification) {
	d.cancelTimer(n.ID)
	d.store.Replace(n)
	d.scheduleTimeout(n)
	d.mirrorAndSound(n)
	d.sendSurface(SurfaceEvent{Kind: SurfaceShow, Notification: n})
}

func (d *Driver) mirrorAndSound(n *notification.Notification) {
	if !n.Transient() {
		d.mu.Lock()
		conns := make([]AppletConnection, 0, len(d.appletConns))
		for _, c := range d.appletConns {
			if !c.Closed() {
				conns = append(conns, c)
			}
		}
		d.appletConns = conns
		d.mu.Unlock()

		for _, c := range conns {
			c.MirrorNotify(n)
		}
	}

	if d.sound != nil && !n.SuppressSound() {
		if err := d.sound.PlayForUrgency(n.Urgency()); err != nil {
			d.logger.Warn("failed to play notification sound", "id", n.ID, "error", err)
		}
	}
}

func (d *Driver) scheduleTimeout(n *notification.Notification) {
	dur, persistent := effectiveTimeout(n, d.timeout)
	if persistent {
		return
	}

	id := n.ID
	timer := time.AfterFunc(dur, func() {
		select {
		case d.cmdCh <- Command{Kind: CmdClosed, ID: id, Reason: notification.CloseReasonExpired}:
		default:
			d.logger.Warn("command channel full, dropping expiry", "id", id)
		}
	})

	d.mu.Lock()
	d.timers[id] = timer
	d.mu.Unlock()
}

func (d *Driver) cancelTimer(id uint32) {
	d.mu.Lock()
	t, ok := d.timers[id]
	if ok {
		delete(d.timers, id)
	}
	d.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// expireAndNotify moves a visible notification into hidden history and
// emits NotificationClosed. A no-op if the notification is not currently
// visible (already expired, already gone, or unknown id).
func (d *Driver) expireAndNotify(id uint32, reason notification.CloseReason) {
	d.cancelTimer(id)

	n, found := d.store.Expire(id)
	if !found {
		return
	}

	if d.emitter != nil {
		if err := d.emitter.EmitNotificationClosed(id, reason); err != nil {
			d.logger.Warn("failed to emit NotificationClosed", "id", id, "error", err)
		}
	}

	d.sendSurface(SurfaceEvent{Kind: SurfaceHide, Notification: n})
}

// deleteAndNotify removes a notification entirely, from whichever queue
// holds it, and emits NotificationClosed. Unlike
// expireAndNotify, the notification does not survive into hidden
// history: an explicit CloseNotification means the client considers it
// handled.
func (d *Driver) deleteAndNotify(id uint32, reason notification.CloseReason) {
	d.cancelTimer(id)

	n, wasVisible, found := d.store.Close(id)
	if !found {
		return
	}

	if d.emitter != nil {
		if err := d.emitter.EmitNotificationClosed(id, reason); err != nil {
			d.logger.Warn("failed to emit NotificationClosed", "id", id, "error", err)
		}
	}

	if wasVisible {
		d.sendSurface(SurfaceEvent{Kind: SurfaceHide, Notification: n})
	}
}

func (d *Driver) handleActivated(cmd Command) {
	n, ok := d.store.Find(cmd.ID)
	if !ok {
		return
	}

	if cmd.Token != "" && d.emitter != nil {
		if err := d.emitter.EmitActivationToken(cmd.ID, cmd.Token); err != nil {
			d.logger.Warn("failed to emit ActivationToken", "id", cmd.ID, "error", err)
		}
	}
	if d.emitter != nil {
		if err := d.emitter.EmitActionInvoked(cmd.ID, cmd.Action); err != nil {
			d.logger.Warn("failed to emit ActionInvoked", "id", cmd.ID, "error", err)
		}
	}

	if !n.Resident() {
		d.expireAndNotify(cmd.ID, notification.CloseReasonDismissed)
	}
}

func (d *Driver) handleGetHistory(cmd Command) {
	hidden := d.store.Hidden()
	if cmd.HistoryReply == nil {
		return
	}
	select {
	case cmd.HistoryReply <- hidden:
	default:
		d.logger.Warn("history reply channel not ready, dropping reply")
	}
}

func (d *Driver) sendSurface(ev SurfaceEvent) {
	if d.surface == nil {
		return
	}
	select {
	case d.surface <- ev:
	default:
		d.logger.Debug("surface channel full, dropping event", "kind", ev.Kind)
	}
}
