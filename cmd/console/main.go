package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/cache"
	"github.com/iliyamo/storefront-live/internal/config"
	"github.com/iliyamo/storefront-live/internal/database"
	"github.com/iliyamo/storefront-live/internal/handler"
	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/logger"
	"github.com/iliyamo/storefront-live/internal/notify"
	"github.com/iliyamo/storefront-live/internal/push"
	"github.com/iliyamo/storefront-live/internal/queue"
	"github.com/iliyamo/storefront-live/internal/repository"
	"github.com/iliyamo/storefront-live/internal/router"
	"github.com/iliyamo/storefront-live/internal/service"
	"github.com/iliyamo/storefront-live/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("config", zap.Error(err))
	}
	log := logger.Init(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("console stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	pushCfg := config.LoadPushConfig()
	cacheCfg := config.LoadCacheConfig()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable: rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var (
		db        *sql.DB
		prefs     *repository.PrefsRepo
		snapshots *repository.SnapshotRepo
	)
	if cfg.PersistEnabled {
		var err error
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return errors.Wrap(err, "open database")
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
		prefs = repository.NewPrefsRepo(db)
		snapshots = repository.NewSnapshotRepo(db)
		if cfg.PersistRetention > 0 {
			n, err := snapshots.Prune(ctx, time.Now().Add(-cfg.PersistRetention))
			if err != nil {
				log.Warn("prune snapshots", zap.Error(err))
			} else if n > 0 {
				log.Info("pruned snapshots", zap.Int64("rows", n))
			}
		}
	}

	tokens := tokenSource(cfg, prefs)
	client, err := api.New(api.Options{
		BaseURL:     cfg.APIBaseURL,
		Tokens:      tokens,
		Lookups:     cache.NewLookup(rdb, cacheCfg),
		ImageURL:    cfg.ImageURL,
		ImagePreset: cfg.ImagePreset,
	})
	if err != nil {
		return err
	}

	raw, err := tokens.Token(ctx)
	if errors.Is(err, session.ErrNoToken) && cfg.LoginEmail != "" {
		raw, err = login(ctx, client, tokens, cfg)
	}
	if err != nil {
		return errors.Wrap(err, "session token")
	}
	sess, err := session.Decode(raw, cfg.JWTSecret)
	if err != nil {
		return err
	}
	if sess.Expired(time.Now()) {
		log.Warn("session token expired; push auth will fail until a new token is stored")
	}
	log.Info("session", zap.String("user", sess.UserID), zap.String("role", string(sess.Role)))

	transport, err := newTransport(cfg, pushCfg)
	if err != nil {
		return err
	}
	announcer := service.NewAnnouncer(sess)
	manager := push.NewManager(push.Options{
		Transport: transport,
		Tokens:    tokens,
		Role:      sess.Role,
		Backoff: push.Backoff{
			Initial: pushCfg.BackoffInitial,
			Max:     pushCfg.BackoffMax,
			Factor:  pushCfg.BackoffFactor,
			Jitter:  pushCfg.BackoffJitter,
		},
		Logger: log,
		OnState: func(st push.State) {
			log.Info("push state", zap.Stringer("state", st))
			announcer.OnState(st)
		},
	})
	announcer.Bind(manager)
	defer manager.Close()
	// keep the channel up even while no view listens
	if err := manager.Connect(); err != nil {
		return err
	}
	defer manager.Disconnect()

	theme := cfg.Theme
	if prefs != nil {
		theme = prefs.Theme(ctx, cfg.Theme)
	}
	var sound notify.Sound = notify.Discard{}
	if pushCfg.NotifySound {
		sound = notify.Bell{W: os.Stdout}
	}
	notifier := notify.New(notify.Options{
		Renderer:    notify.NewTerminal(os.Stdout, theme == "mono"),
		Sound:       sound,
		DedupeTTL:   pushCfg.NotifyDedupeTTL,
		DedupeSize:  pushCfg.NotifyDedupeSize,
		HistorySize: pushCfg.NotifyHistory,
	})
	toasts := manager.Scope("notify")
	defer toasts.Close()
	if err := notifier.Attach(toasts, sess); err != nil {
		return err
	}

	views, err := openViews(manager, sess)
	if err != nil {
		return err
	}
	defer views.close()

	if snapshots != nil {
		rec := service.NewRecorder(snapshots, 0)
		defer rec.Close()
		if err := rec.Restore(ctx, views.Views); err != nil {
			log.Warn("restore snapshots", zap.Error(err))
		}
	}
	if err := service.NewSync(client, sess, views.Views).Backfill(ctx); err != nil {
		log.Warn("backfill incomplete", zap.Error(err))
	}

	h := &handler.ConsoleHandler{
		Session:    sess,
		Push:       manager,
		Orders:     views.Orders,
		Users:      views.Users,
		Inbox:      views.Inbox,
		Stock:      views.Stock,
		OrderSvc:   service.NewOrderService(client, views.Orders, notifier),
		UserSvc:    service.NewUserService(client, views.Users),
		MessageSvc: service.NewMessageService(client, views.Inbox),
		ProductSvc: service.NewProductService(client, views.Stock),
		Notifier:   notifier,
		Lookups:    client,
		Catalog:    client,
		Accounts:   client,
	}
	return serve(ctx, cfg, h, router.Options{
		JWTSecret: cfg.JWTSecret,
		Token:     tokens,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
	}, log)
}

func tokenSource(cfg config.Config, prefs *repository.PrefsRepo) *session.StoredToken {
	src := &session.StoredToken{Fallback: cfg.AuthToken}
	if prefs != nil {
		src.Store = prefs
	}
	return src
}

// login trades LOGIN_EMAIL/LOGIN_PASSWORD for a token and keeps it, in the
// prefs table when persistence is on.
func login(ctx context.Context, c *api.Client, tokens *session.StoredToken, cfg config.Config) (string, error) {
	res, err := c.Login(ctx, cfg.LoginEmail, cfg.LoginPassword)
	if err != nil {
		return "", errors.Wrap(err, "login")
	}
	if res.Token == "" {
		return "", errors.New("login: backend returned no token")
	}
	return res.Token, tokens.Set(ctx, res.Token)
}

func newTransport(cfg config.Config, p config.PushConfig) (push.Transport, error) {
	switch cfg.Transport {
	case "websocket":
		return &push.WebSocket{
			URL:              cfg.SocketURL,
			PingInterval:     p.PingInterval,
			WriteTimeout:     p.WriteTimeout,
			HandshakeTimeout: p.HandshakeWait,
		}, nil
	case "amqp":
		return &queue.AMQP{URL: p.AMQPURL, Exchange: p.AMQPExchange, CommandsQueue: p.AMQPCommandsKey}, nil
	case "nats":
		return &push.NATS{URL: p.NATSURL, Prefix: p.NATSPrefix, Name: "storefront-live", Timeout: p.HandshakeWait}, nil
	}
	return nil, errors.Errorf("unsupported transport %q", cfg.Transport)
}

type openedViews struct {
	service.Views
}

func openViews(src live.Source, sess session.Identity) (*openedViews, error) {
	v := &openedViews{}
	var err error
	if v.Orders, err = live.NewOrderBoard(src); err != nil {
		return nil, err
	}
	if v.Users, err = live.NewUserTable(src); err != nil {
		v.close()
		return nil, err
	}
	if v.Inbox, err = live.NewInbox(src, sess); err != nil {
		v.close()
		return nil, err
	}
	if v.Stock, err = live.NewStockBoard(src); err != nil {
		v.close()
		return nil, err
	}
	return v, nil
}

func (v *openedViews) close() {
	if v.Orders != nil {
		v.Orders.Close()
	}
	if v.Users != nil {
		v.Users.Close()
	}
	if v.Inbox != nil {
		v.Inbox.Close()
	}
	if v.Stock != nil {
		v.Stock.Close()
	}
}

func serve(ctx context.Context, cfg config.Config, h *handler.ConsoleHandler, opts router.Options, log *zap.Logger) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.RegisterRoutes(e)
	router.RegisterConsole(e, h, opts)

	addr := "127.0.0.1:" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("local api listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
