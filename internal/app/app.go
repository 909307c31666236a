package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"listingbot/internal/config"
	"listingbot/internal/eventbus"
	"listingbot/internal/fetcher"
	"listingbot/internal/httpapi"
	"listingbot/internal/monitor"
	"listingbot/internal/notifier"
	"listingbot/internal/router"
	"listingbot/internal/runtime/supervisor"
	"listingbot/internal/scheduler"
	"listingbot/internal/storage"
	"listingbot/internal/transport"
	"listingbot/internal/transport/telegram"
	"listingbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter transport.Adapter

	mon   *monitor.Monitor
	notif *notifier.Notifier
	sched *scheduler.Service
	cmdm  *router.Manager
	http  *httpapi.Server

	// settingsMu serializes operator setting changes (command vs hot reload).
	settingsMu sync.Mutex

	started time.Time
	updates chan transport.Update
}

// deps are the externally built pieces newApp wires together.
type deps struct {
	log     logx.Logger
	logs    *logx.Service
	adapter transport.Adapter
	store   storage.Store
	fetch   monitor.Fetcher
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetCheck(checkConfig)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := cfg.Telegram.PollTimeoutValue()
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the chat sink off, point it at the log group, then
	// apply the final config.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Chat.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	logSvc.SetChatTarget(cfg.GroupLogID(), cfg.Logging.Telegram.ThreadID)
	logSvc.Apply(logCfg)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	fc, err := mapFetcherConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	fetch, err := fetcher.New(fc, log.With(logx.String("comp", "fetcher")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a, err := newApp(context.Background(), cfg, deps{
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		fetch:   fetch,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.cfgPath = cfgPath
	a.cfgm = cfgm
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, d deps) (*App, error) {
	log := d.log
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &App{
		log:     log.With(logx.String("comp", "app")),
		logs:    d.logs,
		bus:     eventbus.New(),
		store:   d.store,
		adapter: d.adapter,
		updates: make(chan transport.Update, 256),
	}

	mc, err := mapMonitorConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.notif = notifier.New(mapNotifierConfig(cfg), d.adapter, log.With(logx.String("comp", "notifier")))
	a.mon = monitor.New(mc, d.fetch, a.notif, d.store, a.bus, log.With(logx.String("comp", "monitor")))
	if err := a.mon.Load(ctx); err != nil {
		a.log.Warn("cache load failed, starting empty", logx.Err(err))
	}

	interval, err := configInterval(cfg)
	if err != nil {
		return nil, err
	}
	target := configTarget(cfg)

	saved, err := loadSettings(ctx, d.store)
	if err != nil {
		a.log.Warn("stored settings unreadable, using config", logx.Err(err))
	}
	if saved.hasTarget {
		target = saved.target
	}
	if saved.hasInterval {
		if err := scheduler.ValidateInterval(saved.interval); err != nil {
			a.log.Warn("stored interval ignored", logx.Duration("interval", saved.interval), logx.Err(err))
		} else {
			interval = saved.interval
		}
	}
	a.mon.SetTarget(target)

	a.sched, err = scheduler.New(interval, a.runScheduled, log.With(logx.String("comp", "scheduler")))
	if err != nil {
		return nil, err
	}

	a.cmdm = router.New(log.With(logx.String("comp", "commands")), d.adapter, cfg.Telegram.OwnerUserIDs)
	a.cmdm.SetCommands(a.commands())

	a.http = httpapi.NewServer(a, log.With(logx.String("comp", "http")))
	return a, nil
}

func (a *App) runScheduled(ctx context.Context) {
	a.mon.Check(ctx, monitor.Request{Trigger: monitor.TriggerTimer})
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.started = time.Now()
	a.mon.SetLifetime(a.sup.Context())

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.publishMenu(a.sup.Context())

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}
	if cfg := a.config(); cfg != nil {
		if err := a.http.Apply(a.sup.Context(), mapHTTPConfig(cfg)); err != nil {
			return err
		}
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// Poll once at startup instead of waiting a full interval.
	a.sup.Go0("monitor.initial", a.runScheduled)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.logEvent(e)
			}
		}
	})

	if a.cfgm != nil {
		updates := a.cfgm.Updates()
		a.sup.Go0("config.reload", func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case u := <-updates:
					a.applyConfig(c, u)
				}
			}
		})
		a.sup.Go("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	a.log.Info("app started",
		logx.Duration("interval", a.sched.Interval()),
		logx.Int64("channel", a.mon.Target().ChatID),
		logx.Int("cached", a.mon.State().Cached),
	)
	return nil
}

func (a *App) config() *config.Config {
	if a.cfgm == nil {
		return nil
	}
	return a.cfgm.Get()
}

func (a *App) publishMenu(ctx context.Context) {
	u, ok := a.adapter.(transport.CommandMenuUpdater)
	if !ok {
		return
	}
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := u.UpdateMenuCommands(c, a.cmdm.MenuCommands()); err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
	}
}

func (a *App) logEvent(e eventbus.Event) {
	switch d := e.Data.(type) {
	case monitor.ItemNew:
		fields := []logx.Field{logx.String("run", d.RunID), logx.String("id", d.Snapshot.ID), logx.String("name", d.Snapshot.Name)}
		if d.Err != "" {
			fields = append(fields, logx.String("err", d.Err))
		}
		a.log.Debug("event", append([]logx.Field{logx.String("type", e.Type)}, fields...)...)
	case monitor.CheckFinished:
		a.log.Debug("event", logx.String("type", e.Type), logx.String("run", d.RunID), logx.String("status", string(d.Status)))
	default:
		a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	}
}

// applyConfig applies a committed hot-reload. Sections that need a restart
// are only logged.
func (a *App) applyConfig(ctx context.Context, u config.Update) {
	oldCfg, newCfg := u.Old, u.New
	if len(u.Changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(u.Restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(u.Restart, ",")))
	}

	if a.logs != nil {
		a.logs.SetChatTarget(newCfg.GroupLogID(), newCfg.Logging.Telegram.ThreadID)
		a.logs.Apply(mapLogConfig(newCfg))
	}
	a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)

	if mc, err := mapMonitorConfig(newCfg); err != nil {
		a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
	} else {
		a.mon.SetConfig(mc)
	}

	if oldCfg == nil || oldCfg.Monitor.Interval != newCfg.Monitor.Interval {
		if d, err := configInterval(newCfg); err != nil {
			a.log.Warn("invalid interval; keeping previous", logx.Err(err))
		} else if err := a.setInterval(ctx, d); err != nil {
			a.log.Warn("interval not applied", logx.Err(err))
		}
	}
	if oldCfg == nil || oldCfg.Monitor.ChannelID != newCfg.Monitor.ChannelID || oldCfg.Monitor.ThreadID != newCfg.Monitor.ThreadID {
		if err := a.setTarget(ctx, configTarget(newCfg)); err != nil {
			a.log.Warn("channel not persisted", logx.Err(err))
		}
	}

	if err := a.http.Apply(ctx, mapHTTPConfig(newCfg)); err != nil {
		a.log.Warn("http server reconfigure failed", logx.Err(err))
	}

	_, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	fields := append([]logx.Field{logx.String("changed", strings.Join(u.Changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// setInterval reschedules and persists the interval.
func (a *App) setInterval(ctx context.Context, d time.Duration) error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	if err := a.sched.SetInterval(d); err != nil {
		return err
	}
	if err := saveInterval(ctx, a.store, d); err != nil {
		return fmt.Errorf("interval applied but not persisted: %w", err)
	}
	return nil
}

// setTarget switches the notification target and persists it.
func (a *App) setTarget(ctx context.Context, t transport.ChatTarget) error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	a.mon.SetTarget(t)
	if err := saveTarget(ctx, a.store, t); err != nil {
		return fmt.Errorf("channel applied but not persisted: %w", err)
	}
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()

	// step runs one shutdown step with an upper bound; a stuck step is
	// logged and left behind.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			if took := time.Since(start); took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				a.log.Info("stop step finished after deadline",
					logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
			}()
		}
	}

	// The scheduler waits for a running cycle, so its commit lands before storage closes.
	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("http", 2*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store == nil {
			return nil
		}
		if err := a.store.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
			return err
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
