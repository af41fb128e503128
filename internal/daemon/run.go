package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/notifd/internal/audio"
	"github.com/jmylchreest/notifd/internal/config"
	"github.com/jmylchreest/notifd/internal/dbusface"
	"github.com/jmylchreest/notifd/internal/history"
	"github.com/jmylchreest/notifd/internal/pipeline"
)

// Daemon ties the D-Bus ingress server, the applet IPC socket, the
// pipeline driver and the audio gate together into one running process.
type Daemon struct {
	cfg        *config.DaemonConfig
	configPath string
	logger     *slog.Logger

	server     *dbusface.Server
	appletSrv  *dbusface.AppletServer
	driver     *pipeline.Driver
	audio      *audio.Manager
	notifier   *InternalNotifier
	cfgWatcher *config.Watcher
}

// New builds a Daemon from a validated configuration loaded from
// configPath (used again by the hot-reload watcher on every subsequent
// change; pass "" to use the default ~/.config/notifd/notifd.toml path).
// Nothing is started until Run is called.
func New(cfg *config.DaemonConfig, configPath string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}

	store := history.New(cfg.Behavior.MaxNotifications, cfg.Behavior.MaxPerApp)
	audioMgr := audio.NewManager(cfg, logger)

	driver := pipeline.New(
		store,
		pipeline.TimeoutConfig{
			LowMs:    cfg.Timeouts.Low.Milliseconds(),
			NormalMs: cfg.Timeouts.Normal.Milliseconds(),
			UrgentMs: cfg.Timeouts.Urgent.Milliseconds(),
		},
		nil, // emitter is wired to server below, once it exists
		nil, // no on-screen surface subscriber in-process
		audioMgr,
		logger,
	)

	server := dbusface.NewServer(driver.Commands(), logger)
	server.SetContentConfig(&cfg.Content)
	driver.SetEmitter(server)
	appletSrv := dbusface.NewAppletServer(driver.Commands(), logger)
	appletSrv.SetContentConfig(&cfg.Content)
	notifier := NewInternalNotifier(logger)
	notifier.SetNotifyHandler(server.NotifyInternal)

	return &Daemon{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		server:     server,
		appletSrv:  appletSrv,
		driver:     driver,
		audio:      audioMgr,
		notifier:   notifier,
	}
}

// Run starts the pipeline driver, claims the session-bus name, serves the
// applet socket and blocks until ctx is cancelled. It retries bus-name
// acquisition up to 5 times with a 100ms gap before giving up, since the
// previous owner (a prior daemon instance mid-shutdown) may not have
// released it yet.
func (d *Daemon) Run(ctx context.Context) error {
	go d.driver.Run(ctx)

	if err := d.audio.Start(ctx); err != nil {
		d.logger.Warn("audio manager failed to start", "error", err)
	}
	defer d.audio.Stop()

	var startErr error
	for attempt := 0; attempt < 5; attempt++ {
		if startErr = d.server.Start(); startErr == nil {
			break
		}
		d.logger.Warn("bus name acquisition failed, retrying", "attempt", attempt+1, "error", startErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	if startErr != nil {
		return fmt.Errorf("daemon: failed to acquire bus name after retries: %w", startErr)
	}
	defer d.server.Stop()

	if watcher, err := d.startConfigWatcher(); err != nil {
		d.logger.Warn("config hot-reload disabled", "error", err)
	} else {
		d.cfgWatcher = watcher
		defer d.cfgWatcher.Stop()
	}

	d.notifier.NotifyStartup(dbusface.ImplVersion)

	appletErrCh := make(chan error, 1)
	go func() { appletErrCh <- d.appletSrv.Serve(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-appletErrCh:
		if err != nil {
			d.logger.Warn("applet socket server exited", "error", err)
		}
		<-ctx.Done()
		return nil
	}
}

func (d *Daemon) startConfigWatcher() (*config.Watcher, error) {
	path := d.configPath
	if path == "" {
		var err error
		path, err = config.DaemonConfigPath()
		if err != nil {
			return nil, err
		}
	}
	w, err := config.NewWatcher(path, d.cfg, d.logger)
	if err != nil {
		return nil, err
	}
	w.SetReloadCallback(func(cfg *config.DaemonConfig) {
		d.cfg = cfg
		d.audio.UpdateConfig(cfg)
		d.server.SetContentConfig(&cfg.Content)
		d.appletSrv.SetContentConfig(&cfg.Content)
		d.notifier.NotifyConfigReloaded()
	})
	w.SetErrorCallback(func(err error) {
		d.notifier.NotifyConfigError(err)
	})
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}
