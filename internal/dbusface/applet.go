package dbusface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"golang.org/x/sys/unix"

	"github.com/jmylchreest/notifd/internal/config"
	"github.com/jmylchreest/notifd/internal/notification"
	"github.com/jmylchreest/notifd/internal/pipeline"
	"github.com/jmylchreest/notifd/internal/sanitize"
)

const (
	socketBusPath = "/com/system76/NotificationsSocket"
	socketIface   = "com.system76.NotificationsSocket"
	appletBusPath = "/com/system76/NotificationsApplet"
	appletIface   = "com.system76.NotificationsApplet"

	appletMirrorTimeout = 500 * time.Millisecond
	historyQueryTimeout = 2 * time.Second
)

// historyEntry is the (ussssx) tuple GetHistory returns per hidden
// notification: id, app_name, summary, body, app_icon, received_at (unix
// seconds).
type historyEntry struct {
	ID         uint32
	AppName    string
	Summary    string
	Body       string
	AppIcon    string
	ReceivedAt int64
}

// historyFullEntry is the JSON shape serialised for GetHistoryFull.
type historyFullEntry struct {
	ID         uint32              `json:"id"`
	HistoryID  string              `json:"history_id"`
	AppName    string              `json:"app_name"`
	Summary    string              `json:"summary"`
	Body       string              `json:"body"`
	AppIcon    string              `json:"app_icon"`
	Urgency    int                 `json:"urgency"`
	ReceivedAt int64               `json:"received_at"`
	Links      []sanitize.HrefText `json:"links,omitempty"`
}

// AppletServer owns the private peer-to-peer endpoint the desktop applet
// uses to fetch history, invoke actions, and receive a mirrored Notify
// signal outside the normal session bus. The daemon learns the applet's
// listening fd through DAEMON_NOTIFICATIONS_FD; everything past that is a
// fresh per-call socketpair so each applet instance gets its own private
// connection.
type AppletServer struct {
	cmds    chan<- pipeline.Command
	logger  *slog.Logger
	content atomic.Pointer[config.ContentConfig]

	mu    sync.Mutex
	conns []*appletConn
}

// NewAppletServer builds an AppletServer sending commands onto cmds.
func NewAppletServer(cmds chan<- pipeline.Command, logger *slog.Logger) *AppletServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppletServer{cmds: cmds, logger: logger}
}

// SetContentConfig binds the rich-content toggles consulted when building
// GetHistoryFull's link list; a nil or never-set config defaults to links
// enabled, matching DefaultDaemonConfig.
func (a *AppletServer) SetContentConfig(cfg *config.ContentConfig) {
	a.content.Store(cfg)
}

// Serve wraps the inherited DAEMON_NOTIFICATIONS_FD as a peer D-Bus
// connection exporting GetFd, and blocks until ctx is cancelled.
func (a *AppletServer) Serve(ctx context.Context) error {
	fdStr := os.Getenv("DAEMON_NOTIFICATIONS_FD")
	if fdStr == "" {
		return fmt.Errorf("dbusface: DAEMON_NOTIFICATIONS_FD not set")
	}
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		return fmt.Errorf("dbusface: invalid DAEMON_NOTIFICATIONS_FD %q: %w", fdStr, err)
	}

	dup, err := unix.Dup(fd)
	if err != nil {
		return fmt.Errorf("dbusface: dup inherited fd: %w", err)
	}
	unix.CloseOnExec(dup)
	if err := unix.SetNonblock(dup, true); err != nil {
		return fmt.Errorf("dbusface: set inherited fd nonblocking: %w", err)
	}

	file := os.NewFile(uintptr(dup), "notifications-socket")
	netConn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("dbusface: wrap inherited fd: %w", err)
	}

	conn, err := dbus.NewConn(netConn)
	if err != nil {
		return fmt.Errorf("dbusface: new peer connection: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return fmt.Errorf("dbusface: peer auth: %w", err)
	}

	handler := &socketHandler{server: a}
	if err := conn.Export(handler, socketBusPath, socketIface); err != nil {
		conn.Close()
		return fmt.Errorf("dbusface: export socket handler: %w", err)
	}
	node := &introspect.Node{
		Name: socketBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: socketIface,
				Methods: []introspect.Method{
					{Name: "GetFd", Args: []introspect.Arg{{Name: "fd", Type: "h", Direction: "out"}}},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), socketBusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return fmt.Errorf("dbusface: export socket introspectable: %w", err)
	}

	a.logger.Info("applet socket endpoint ready", "path", socketBusPath)
	<-ctx.Done()
	return conn.Close()
}

// socketHandler exports GetFd; it is a separate type from AppletServer so
// only this one method is reachable over the inherited connection.
type socketHandler struct {
	server *AppletServer
}

// GetFd creates a fresh socketpair, serves NotificationsApplet on one end,
// and returns the other end to the caller.
func (h *socketHandler) GetFd() (dbus.UnixFD, *dbus.Error) {
	fd, err := h.server.newAppletConnection()
	if err != nil {
		h.server.logger.Error("failed to create applet connection", "error", err)
		return 0, dbus.MakeFailedError(err)
	}
	return dbus.UnixFD(fd), nil
}

func (a *AppletServer) newAppletConnection() (int, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, fmt.Errorf("socketpair: %w", err)
	}
	ourFd, theirFd := fds[0], fds[1]

	if err := unix.SetNonblock(ourFd, true); err != nil {
		unix.Close(ourFd)
		unix.Close(theirFd)
		return 0, fmt.Errorf("set nonblocking: %w", err)
	}

	file := os.NewFile(uintptr(ourFd), "notifications-applet")
	netConn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		unix.Close(theirFd)
		return 0, fmt.Errorf("wrap socketpair end: %w", err)
	}

	conn, err := dbus.NewConn(netConn)
	if err != nil {
		unix.Close(theirFd)
		return 0, fmt.Errorf("new peer connection: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		unix.Close(theirFd)
		return 0, fmt.Errorf("peer auth: %w", err)
	}

	ac := &appletConn{server: a, conn: conn}
	if err := conn.Export(ac, appletBusPath, appletIface); err != nil {
		conn.Close()
		unix.Close(theirFd)
		return 0, fmt.Errorf("export applet handler: %w", err)
	}
	node := &introspect.Node{
		Name: appletBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: appletIface,
				Methods: []introspect.Method{
					{
						Name: "InvokeAction",
						Args: []introspect.Arg{
							{Name: "id", Type: "u", Direction: "in"},
							{Name: "action", Type: "s", Direction: "in"},
						},
					},
					{
						Name: "GetHistory",
						Args: []introspect.Arg{
							{Name: "entries", Type: "a(ussssx)", Direction: "out"},
						},
					},
					{
						Name: "GetHistoryFull",
						Args: []introspect.Arg{
							{Name: "entries", Type: "as", Direction: "out"},
						},
					},
				},
				Signals: []introspect.Signal{
					{
						Name: "Notify",
						Args: []introspect.Arg{
							{Name: "id", Type: "u"},
							{Name: "app_name", Type: "s"},
							{Name: "app_icon", Type: "s"},
							{Name: "summary", Type: "s"},
							{Name: "body", Type: "s"},
							{Name: "expire_timeout", Type: "i"},
						},
					},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), appletBusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		unix.Close(theirFd)
		return 0, fmt.Errorf("export applet introspectable: %w", err)
	}

	a.mu.Lock()
	a.conns = append(a.conns, ac)
	a.mu.Unlock()

	return theirFd, nil
}

// appletConn is one live applet peer connection. It implements
// pipeline.AppletConnection so the dbusface ingress server can mirror
// outbound Notify calls to it directly.
type appletConn struct {
	server   *AppletServer
	conn     *dbus.Conn
	closed   atomic.Bool
	failures atomic.Int32
}

// MirrorNotify forwards a non-transient notification to this applet,
// bounded by appletMirrorTimeout; a slow peer is skipped for this call but
// left registered for the next one. A peer whose emit fails stays
// registered after its first failure and is marked closed after a second
// consecutive failure.
func (c *appletConn) MirrorNotify(n *notification.Notification) {
	done := make(chan error, 1)
	go func() {
		done <- c.conn.Emit(appletBusPath, appletIface+".Notify",
			n.ID, n.AppName, n.AppIcon, n.Summary, n.Body, n.ExpireTimeoutMs)
	}()

	select {
	case err := <-done:
		if err != nil {
			c.server.logger.Warn("failed to mirror notify to applet", "id", n.ID, "error", err)
			if c.failures.Add(1) >= 2 {
				c.closed.Store(true)
			}
		} else {
			c.failures.Store(0)
		}
	case <-time.After(appletMirrorTimeout):
		c.server.logger.Warn("applet connection slow, skipping mirror", "id", n.ID)
	}
}

// Closed reports whether this connection should be dropped from the
// mirror list.
func (c *appletConn) Closed() bool {
	return c.closed.Load()
}

// InvokeAction implements com.system76.NotificationsApplet.InvokeAction.
func (c *appletConn) InvokeAction(id uint32, action string) *dbus.Error {
	select {
	case c.server.cmds <- pipeline.Command{Kind: pipeline.CmdAppletActivated, ID: id, Action: action}:
	default:
		c.server.logger.Warn("command channel full, dropping applet action", "id", id)
	}
	return nil
}

// GetHistory implements com.system76.NotificationsApplet.GetHistory.
func (c *appletConn) GetHistory() ([]historyEntry, *dbus.Error) {
	hidden, err := c.server.queryHistory()
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}

	entries := make([]historyEntry, 0, len(hidden))
	for _, n := range hidden {
		entries = append(entries, historyEntry{
			ID:         n.ID,
			AppName:    n.AppName,
			Summary:    n.Summary,
			Body:       n.Body,
			AppIcon:    n.AppIcon,
			ReceivedAt: n.ReceivedAt.Unix(),
		})
	}
	return entries, nil
}

// GetHistoryFull implements
// com.system76.NotificationsApplet.GetHistoryFull.
func (c *appletConn) GetHistoryFull() ([]string, *dbus.Error) {
	hidden, err := c.server.queryHistory()
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}

	cfg := c.server.content.Load()
	enableLinks := cfg == nil || cfg.EnableLinks

	out := make([]string, 0, len(hidden))
	for _, n := range hidden {
		var links []sanitize.HrefText
		if enableLinks {
			links = sanitize.ExtractHrefs(n.Body)
		}

		data, err := json.Marshal(historyFullEntry{
			ID:         n.ID,
			HistoryID:  n.HistoryID,
			AppName:    n.AppName,
			Summary:    n.Summary,
			Body:       n.Body,
			AppIcon:    n.AppIcon,
			Urgency:    n.Urgency(),
			ReceivedAt: n.ReceivedAt.Unix(),
			Links:      links,
		})
		if err != nil {
			c.server.logger.Warn("failed to marshal history entry", "id", n.ID, "error", err)
			continue
		}
		out = append(out, string(data))
	}
	return out, nil
}

// queryHistory posts a GetHistory command into the pipeline and waits up
// to historyQueryTimeout for the reply.
func (a *AppletServer) queryHistory() ([]*notification.Notification, error) {
	reply := make(chan []*notification.Notification, 1)
	select {
	case a.cmds <- pipeline.Command{Kind: pipeline.CmdGetHistory, HistoryReply: reply}:
	default:
		return nil, fmt.Errorf("Timeout")
	}

	select {
	case hist := <-reply:
		return hist, nil
	case <-time.After(historyQueryTimeout):
		return nil, fmt.Errorf("Timeout")
	}
}
