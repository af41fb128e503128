package dbusface

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/notifd/internal/config"
	"github.com/jmylchreest/notifd/internal/notification"
	"github.com/jmylchreest/notifd/internal/pipeline"
	"github.com/jmylchreest/notifd/internal/ratelimit"
	"github.com/jmylchreest/notifd/internal/sanitize"
)

const (
	busInterface = "org.freedesktop.Notifications"
	busPath      = "/org/freedesktop/Notifications"
	busName      = "org.freedesktop.Notifications"

	// rateLimitedID is returned from Notify in place of a real id when the
	// sender is over its rate limit and replaces_id == 0. Real allocation
	// starts at 2 so this value is never handed out legitimately.
	rateLimitedID uint32 = 1

	rateLimitSweepEvery = 100
)

// serverCapabilities is the fixed capability list advertised by
// GetCapabilities.
var serverCapabilities = []string{
	"body",
	"icon-static",
	"persistence",
	"actions",
	"action-icons",
	"body-markup",
	"body-hyperlinks",
	"sound",
}

// ImplVersion is the version string reported by GetServerInformation; set
// at build time via -ldflags, defaulting to "dev".
var ImplVersion = "dev"

// Server implements the org.freedesktop.Notifications session-bus
// interface. It owns the monotonic id counter and the rate limiter, and
// forwards every call to the pipeline driver as a Command; it holds no
// notification state of its own.
type Server struct {
	conn   *dbus.Conn
	cmds   chan<- pipeline.Command
	logger *slog.Logger

	nextID      atomic.Uint64
	notifyCount atomic.Uint64
	limiter     *ratelimit.Limiter
	content     atomic.Pointer[config.ContentConfig]

	appletsMu sync.Mutex
	applets   []pipeline.AppletConnection
}

// SetContentConfig binds the rich-content toggles (images, links,
// animations) consulted by Notify and ParseHints. Safe to call
// concurrently with Notify; a nil or never-set config defaults to
// everything enabled, at imageproc's default size cap.
func (s *Server) SetContentConfig(cfg *config.ContentConfig) {
	s.content.Store(cfg)
}

// NewServer builds a Server that sends commands onto cmds. cmds is
// normally (*pipeline.Driver).Commands().
func NewServer(cmds chan<- pipeline.Command, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cmds:    cmds,
		logger:  logger,
		limiter: ratelimit.New(logger),
	}
	// id 1 is reserved as the rate-limit-rejection sentinel; allocation
	// starts at 2.
	s.nextID.Store(1)
	return s
}

// Start connects to the session bus, exports the interface and
// introspection data, and claims the well-known bus name.
func (s *Server) Start() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, busPath, busInterface); err != nil {
		return fmt.Errorf("export notifications object: %w", err)
	}

	node := &introspect.Node{
		Name: busPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    busInterface,
				Methods: introspectMethods(),
				Signals: introspectSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), busPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspectable: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue|dbus.NameFlagReplaceExisting)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already owned", busName)
	}

	s.logger.Info("d-bus notification interface started", "interface", busInterface, "path", busPath)
	return nil
}

// Stop releases the bus name. The underlying connection is shared
// (SessionBus) and is not closed.
func (s *Server) Stop() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(busName); err != nil {
		s.logger.Warn("failed to release bus name", "error", err)
	}
	return nil
}

// RegisterApplet adds an applet connection to the mirror list consulted
// by Notify, and forwards an informational AppletConn command so the
// pipeline driver's own housekeeping sees it too.
func (s *Server) RegisterApplet(conn pipeline.AppletConnection) {
	s.appletsMu.Lock()
	s.applets = append(s.applets, conn)
	s.appletsMu.Unlock()

	select {
	case s.cmds <- pipeline.Command{Kind: pipeline.CmdAppletConn, AppletConn: conn}:
	default:
		s.logger.Warn("command channel full, dropping applet registration")
	}
}

func (s *Server) liveApplets() []pipeline.AppletConnection {
	s.appletsMu.Lock()
	defer s.appletsMu.Unlock()
	live := s.applets[:0:0]
	for _, c := range s.applets {
		if !c.Closed() {
			live = append(live, c)
		}
	}
	s.applets = live
	return live
}

// GetCapabilities implements org.freedesktop.Notifications.GetCapabilities.
func (s *Server) GetCapabilities() ([]string, *dbus.Error) {
	return serverCapabilities, nil
}

// GetServerInformation implements
// org.freedesktop.Notifications.GetServerInformation.
func (s *Server) GetServerInformation() (string, string, string, string, *dbus.Error) {
	return "cosmic-notifications", "System76", ImplVersion, "1.2", nil
}

// Notify implements org.freedesktop.Notifications.Notify.
func (s *Server) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	count := s.notifyCount.Add(1)
	if count%rateLimitSweepEvery == 0 {
		s.limiter.Sweep()
	}

	if replacesID == 0 && !s.limiter.Allow(appName) {
		s.logger.Debug("rate limit rejected notify", "app_name", appName)
		return rateLimitedID, nil
	}

	var id uint32
	var kind pipeline.CommandKind
	if replacesID != 0 {
		id = replacesID
		kind = pipeline.CmdReplace
	} else {
		id = uint32(s.nextID.Add(1))
		kind = pipeline.CmdNotification
	}

	cfg := s.content.Load()

	n := &notification.Notification{
		ID:              id,
		AppName:         appName,
		AppIcon:         appIcon,
		Summary:         sanitize.Strip(summary),
		Body:            sanitize.SanitizeContent(body, contentEnableLinks(cfg)),
		Actions:         ParseActions(actions),
		Hints:           ParseHints(hints, cfg, s.logger),
		ExpireTimeoutMs: expireTimeout,
		ReceivedAt:      time.Now(),
		ReplacesID:      replacesID,
	}

	s.dispatch(kind, n)
	return id, nil
}

// contentEnableLinks reports whether body markup may keep hyperlinks, for a
// possibly-nil content configuration (nil defaults to enabled, matching
// DefaultDaemonConfig).
func contentEnableLinks(cfg *config.ContentConfig) bool {
	return cfg == nil || cfg.EnableLinks
}

// NotifyInternal enqueues an already-built notification, bypassing the rate
// limiter and app-name wire parsing. Used by the daemon's own operational
// notifications (config reload, audio errors) so they travel the same
// ingestion path an external caller's Notify would take, rather than
// reaching into the history store directly.
func (s *Server) NotifyInternal(n *notification.Notification) uint32 {
	n.ID = uint32(s.nextID.Add(1))
	n.ReceivedAt = time.Now()
	s.dispatch(pipeline.CmdNotification, n)
	return n.ID
}

// dispatch enqueues n as a pipeline command and, unless it is transient,
// mirrors it to every live applet connection.
func (s *Server) dispatch(kind pipeline.CommandKind, n *notification.Notification) {
	select {
	case s.cmds <- pipeline.Command{Kind: kind, Notification: n}:
	default:
		s.logger.Warn("command channel full, dropping notification", "id", n.ID)
	}

	if !n.Transient() {
		for _, c := range s.liveApplets() {
			c.MirrorNotify(n)
		}
	}
}

// CloseNotification implements
// org.freedesktop.Notifications.CloseNotification.
func (s *Server) CloseNotification(id uint32) *dbus.Error {
	select {
	case s.cmds <- pipeline.Command{Kind: pipeline.CmdCloseNotification, ID: id}:
	default:
		s.logger.Warn("command channel full, dropping close", "id", id)
	}
	return nil
}

func introspectMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "GetCapabilities",
			Args: []introspect.Arg{
				{Name: "capabilities", Type: "as", Direction: "out"},
			},
		},
		{
			Name: "Notify",
			Args: []introspect.Arg{
				{Name: "app_name", Type: "s", Direction: "in"},
				{Name: "replaces_id", Type: "u", Direction: "in"},
				{Name: "app_icon", Type: "s", Direction: "in"},
				{Name: "summary", Type: "s", Direction: "in"},
				{Name: "body", Type: "s", Direction: "in"},
				{Name: "actions", Type: "as", Direction: "in"},
				{Name: "hints", Type: "a{sv}", Direction: "in"},
				{Name: "expire_timeout", Type: "i", Direction: "in"},
				{Name: "id", Type: "u", Direction: "out"},
			},
		},
		{
			Name: "CloseNotification",
			Args: []introspect.Arg{
				{Name: "id", Type: "u", Direction: "in"},
			},
		},
		{
			Name: "GetServerInformation",
			Args: []introspect.Arg{
				{Name: "name", Type: "s", Direction: "out"},
				{Name: "vendor", Type: "s", Direction: "out"},
				{Name: "version", Type: "s", Direction: "out"},
				{Name: "spec_version", Type: "s", Direction: "out"},
			},
		},
	}
}

func introspectSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "NotificationClosed",
			Args: []introspect.Arg{
				{Name: "id", Type: "u"},
				{Name: "reason", Type: "u"},
			},
		},
		{
			Name: "ActionInvoked",
			Args: []introspect.Arg{
				{Name: "id", Type: "u"},
				{Name: "action_key", Type: "s"},
			},
		},
		{
			Name: "ActivationToken",
			Args: []introspect.Arg{
				{Name: "id", Type: "u"},
				{Name: "activation_token", Type: "s"},
			},
		},
	}
}
