package pipeline

import "github.com/jmylchreest/notifd/internal/notification"

// CommandKind tags the variant carried by a Command.
type CommandKind int

const (
	CmdNotification CommandKind = iota
	CmdReplace
	CmdCloseNotification
	CmdActivated
	CmdDismissed
	CmdClosed
	CmdAppletConn
	CmdAppletActivated
	CmdGetHistory
)

// Command is the single message type flowing through the driver's bounded
// channel. Only the fields relevant to Kind are populated; this mirrors
// the tagged-hint pattern already used in the notification package.
type Command struct {
	Kind CommandKind

	// CmdNotification, CmdReplace
	Notification *notification.Notification

	// CmdCloseNotification, CmdActivated, CmdDismissed, CmdClosed,
	// CmdAppletActivated
	ID uint32

	// CmdActivated
	Token  string
	Action string

	// CmdClosed
	Reason notification.CloseReason

	// CmdAppletConn
	AppletConn AppletConnection

	// CmdGetHistory
	HistoryReply chan []*notification.Notification
}

// AppletConnection is whatever the applet IPC layer needs the driver to
// retain per live connection in order to mirror outbound Notify signals
// and forward InvokeAction calls. The driver treats it opaquely.
type AppletConnection interface {
	// MirrorNotify forwards a non-transient notification to this applet
	// connection, subject to a short per-connection timeout; the driver
	// does not retry on failure.
	MirrorNotify(n *notification.Notification)
	// Closed reports whether the underlying connection has been torn
	// down, so the driver can drop it on the next housekeeping pass.
	Closed() bool
}

// SurfaceEventKind tags the variant carried by a SurfaceEvent.
type SurfaceEventKind int

const (
	// SurfaceReady is the first event emitted on driver startup,
	// advertising the command channel to the (out-of-scope) on-screen
	// surface subscriber.
	SurfaceReady SurfaceEventKind = iota
	SurfaceShow
	SurfaceHide
)

// SurfaceEvent is an outbound notification to whatever renders the
// on-screen overlay; the renderer itself is out of scope.
type SurfaceEvent struct {
	Kind         SurfaceEventKind
	Notification *notification.Notification
	Commands     chan<- Command // SurfaceReady only
}

// SignalEmitter is the D-Bus-facing half of the driver's side effects,
// implemented by dbusface.Server. The driver never touches a D-Bus
// connection directly.
type SignalEmitter interface {
	EmitNotificationClosed(id uint32, reason notification.CloseReason) error
	EmitActionInvoked(id uint32, actionKey string) error
	EmitActivationToken(id uint32, token string) error
}
