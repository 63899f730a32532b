// Package main is the entry point of the class-bell Telegram bot.
//
// The bot keeps a school class informed inside its group chat: the current
// lesson as the bot's status line, homework reminders that wait for an
// acknowledgement, lucky numbers, lesson substitutions and price alerts for
// tracked marketplace items.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/config"

	// Application layer
	"github.com/class-bell/class-bell/internal/application/command"
	"github.com/class-bell/class-bell/internal/application/feeds"
	"github.com/class-bell/class-bell/internal/application/query"
	"github.com/class-bell/class-bell/internal/application/reminder"
	"github.com/class-bell/class-bell/internal/application/state"

	// Domain layer
	"github.com/class-bell/class-bell/internal/domain/snapshot"
	"github.com/class-bell/class-bell/internal/domain/timetable"

	// Infrastructure layer
	"github.com/class-bell/class-bell/internal/infrastructure/external/luckynumbers"
	"github.com/class-bell/class-bell/internal/infrastructure/external/steam"
	"github.com/class-bell/class-bell/internal/infrastructure/external/substitutions"
	tgclient "github.com/class-bell/class-bell/internal/infrastructure/external/telegram"
	"github.com/class-bell/class-bell/internal/infrastructure/external/web"
	"github.com/class-bell/class-bell/internal/infrastructure/messaging"
	"github.com/class-bell/class-bell/internal/infrastructure/metrics"
	"github.com/class-bell/class-bell/internal/infrastructure/persistence/memory"
	"github.com/class-bell/class-bell/internal/infrastructure/persistence/postgres"
	"github.com/class-bell/class-bell/internal/infrastructure/persistence/redis"
	"github.com/class-bell/class-bell/internal/infrastructure/scheduler"
	"github.com/class-bell/class-bell/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/class-bell/class-bell/internal/interface/http"
	"github.com/class-bell/class-bell/internal/interface/http/handlers"
	"github.com/class-bell/class-bell/internal/interface/telegram"
	"github.com/class-bell/class-bell/internal/interface/telegram/middleware"

	// Packages
	"github.com/class-bell/class-bell/pkg/logger"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// pruneInterval is how often idle command rate-limit buckets are dropped.
const pruneInterval = 10 * time.Minute

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		Development: cfg.IsDevelopment(),
		Service:     cfg.App.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting class-bell",
		zap.String("env", string(cfg.App.Environment)),
		zap.String("version", cfg.App.Version),
		zap.String("timezone", cfg.App.Timezone),
		zap.String("state_backend", cfg.State.Backend),
	)

	clock := timeutil.RealClock{}
	loc := cfg.App.Location
	m := metrics.New()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. TIMETABLE AND STATE
	// ─────────────────────────────────────────────────────────────────────────
	raw, err := os.ReadFile(cfg.Timetable.File)
	if err != nil {
		return fmt.Errorf("failed to read timetable: %w", err)
	}
	tt, err := timetable.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse timetable %s: %w", cfg.Timetable.File, err)
	}
	resolver := timetable.NewResolver(tt, loc)

	store, ping, closeStore, err := openStateStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	st := state.New(store, loc,
		state.WithLogger(logger.Component(log, "state")),
		state.WithRecorder(m),
	)
	if err := st.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}

	// Saved on every exit path once the state was restored.
	defer func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := st.Persist(saveCtx); err != nil {
			log.Error("failed to save state on shutdown", zap.Error(err))
			return
		}
		log.Info("state saved")
	}()

	memberships, err := telegram.ParseMemberships(cfg.Telegram.Memberships)
	if err != nil {
		return fmt.Errorf("TELEGRAM_MEMBERSHIPS: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. CHAT
	// ─────────────────────────────────────────────────────────────────────────
	hub := messaging.NewReactionHub(clock, logger.Component(log, "reactions"))
	defer hub.Close()

	clientCfg := tgclient.DefaultClientConfig(cfg.Telegram.Token)
	clientCfg.BaseURL = cfg.Telegram.BaseURL
	clientCfg.PollTimeout = int(cfg.Telegram.PollTimeout.Seconds())
	clientCfg.Timeout = cfg.Telegram.PollTimeout + 30*time.Second
	clientCfg.Logger = logger.Component(log, "telegram")
	client := tgclient.NewClient(clientCfg)

	connector := tgclient.NewConnector(client, cfg.Telegram.Roles, hub, clock, logger.Component(log, "connector"))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EXTERNAL FEEDS
	// ─────────────────────────────────────────────────────────────────────────
	webCfg := web.DefaultConfig()
	webCfg.Cooldown = cfg.Upstream.Cooldown
	webCfg.Timeout = cfg.Upstream.Timeout
	webCfg.AcceptedStatuses = cfg.Upstream.AcceptedStatuses
	webCfg.UserAgent = cfg.Upstream.UserAgent
	fetcher := web.NewFetcher(webCfg, nil, clock, logger.Component(log, "fetcher"), m)

	prices := steam.NewClient(fetcher, cfg.Upstream.SteamURL, cfg.Upstream.SteamAppID, cfg.Upstream.SteamCurrency)

	synchronizer := feeds.NewSynchronizer(feeds.Config{
		GeneralChannel:       cfg.Channels.General,
		AdminChannel:         cfg.Channels.Admin,
		LogChannel:           cfg.Channels.Log,
		SubstitutionsChannel: cfg.Channels.Substitutions,
		OperatorID:           cfg.Telegram.OperatorID,
		Class:                cfg.Timetable.Class,
		Pacing:               cfg.Upstream.Pacing,
		LuckyNumbersTTL:      cfg.Upstream.LuckyNumbersTTL,
	}, feeds.Deps{
		State:         st,
		Connector:     connector,
		LuckyNumbers:  luckynumbers.NewClient(fetcher, cfg.Upstream.LuckyNumbersURL),
		Substitutions: substitutions.NewClient(fetcher, cfg.Upstream.SubstitutionsURL),
		Prices:        prices,
		Clock:         clock,
		Logger:        logger.Component(log, "feeds"),
		Recorder:      m,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REMINDERS AND COMMANDS
	// ─────────────────────────────────────────────────────────────────────────
	reminders := reminder.NewService(reminder.Config{
		Channel:          cfg.Channels.Reminders,
		BroadcastMention: cfg.Telegram.BroadcastMention,
		AckTimeout:       cfg.Scheduler.AckTimeout,
	}, st, connector, hub, clock, logger.Component(log, "reminders"), m)

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.Limits.CommandsPerMinute,
		BurstSize:         cfg.Limits.CommandBurst,
		Exempt:            map[string]bool{cfg.Telegram.OperatorID: true},
	}, clock)

	router := telegram.NewRouter(telegram.RouterConfig{
		LogChannel: cfg.Channels.Log,
		OperatorID: cfg.Telegram.OperatorID,
		Limiter:    limiter,
		Recorder:   m,
		Logger:     logger.Component(log, "commands"),
	}, connector)

	aliases := make(map[string]timetable.GroupTag, len(cfg.Telegram.Roles))
	for tag, mention := range cfg.Telegram.Roles {
		aliases[mention] = timetable.GroupTag(tag)
	}

	telegram.RegisterCommands(router, telegram.CommandDeps{
		Handlers: telegram.Handlers{
			CreateHomework: command.NewCreateHomeworkHandler(st),
			DeleteHomework: command.NewDeleteHomeworkHandler(st),
			ListHomework:   query.NewListHomeworkHandler(st, connector, cfg.Telegram.BroadcastMention),
			NextBreak:      query.NewNextBreakHandler(resolver),
			NextLesson:     query.NewNextLessonHandler(resolver),
			LessonPlan:     query.NewLessonPlanHandler(resolver),
			LuckyNumbers:   query.NewLuckyNumbersHandler(synchronizer, connector, cfg.Telegram.Roster),
			Substitutions:  query.NewSubstitutionsHandler(synchronizer, cfg.Timetable.Class),
			MarketPrice:    query.NewMarketPriceHandler(prices),
			TrackItem:      command.NewTrackItemHandler(st, prices, connector),
			UntrackItem:    command.NewUntrackItemHandler(st),
		},
		Chat:          connector,
		Reactions:     hub,
		Admins:        connector,
		Members:       memberships,
		GroupAliases:  aliases,
		Clock:         clock,
		Location:      loc,
		RevealTimeout: cfg.Scheduler.RevealTimeout,
		Logger:        logger.Component(log, "commands"),
	})

	bot := telegram.NewBot(telegram.BotConfig{
		AllowedChats: cfg.Telegram.AllowedChats,
		Logger:       logger.Component(log, "bot"),
	}, client, connector, router)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Tick:     cfg.Scheduler.Tick,
		Clock:    clock,
		Logger:   logger.Component(log, "scheduler"),
		Recorder: m,
	})

	minuteTick := jobs.NewMinuteTickJob(resolver, connector, reminders, clock, log)
	if err := sched.Register(minuteTick, scheduler.Every(cfg.Scheduler.Tick), scheduler.RunImmediately()); err != nil {
		return fmt.Errorf("failed to register %s: %w", minuteTick.Name(), err)
	}
	pollFeeds := jobs.NewPollFeedsJob(synchronizer, log)
	if err := sched.Register(pollFeeds, scheduler.Every(cfg.Scheduler.PollInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", pollFeeds.Name(), err)
	}
	prune := jobs.NewPruneLimiterJob(limiter)
	if err := sched.Register(prune, scheduler.Every(pruneInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", prune.Name(), err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	var httpServer *httpserver.Server
	var httpErr <-chan error
	if cfg.HTTP.Enabled {
		checker := handlers.NewChecker(cfg.App.Version, 5*time.Second, clock)
		checker.AddCheck("state", ping)
		checker.AddCheck("scheduler", func(context.Context) error {
			if !sched.IsRunning() {
				return errors.New("scheduler is not running")
			}
			return nil
		})

		deps := httpserver.Dependencies{Health: checker, Logger: log}
		if cfg.Observability.MetricsEnabled {
			deps.Metrics = m.Handler()
		}
		httpCfg := httpserver.DefaultConfig()
		httpCfg.Host = cfg.HTTP.Host
		httpCfg.Port = cfg.HTTP.Port
		httpServer = httpserver.NewServer(httpCfg, deps)
		httpErr = httpServer.StartAsync()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. RUN
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	botErr := make(chan error, 1)
	go func() { botErr <- bot.Run(runCtx) }()

	log.Info("class-bell is running", zap.Int("jobs", len(sched.ListJobs())))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-botErr:
		runErr = fmt.Errorf("telegram bot stopped: %w", err)
		botErr <- nil
	case err, ok := <-httpErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown", zap.Duration("timeout", cfg.App.ShutdownTimeout))
	cancel()

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Warn("failed to stop scheduler", zap.Error(err))
	}
	if err := <-botErr; err != nil {
		log.Warn("telegram bot stopped with error", zap.Error(err))
	}

	// No reaction can arrive once polling stopped, so pending reminders are
	// abandoned rather than waited out.
	remindersCtx, remindersCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer remindersCancel()
	if err := reminders.Shutdown(remindersCtx); err != nil {
		log.Warn("failed to release pending reminders", zap.Error(err))
	}
	hub.Close()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to stop HTTP server gracefully", zap.Error(err))
		}
	}

	handled, failed := bot.Stats()
	log.Info("shutdown completed", zap.Int64("updates_handled", handled), zap.Int64("updates_failed", failed))
	return runErr
}

// openStateStore connects the configured backend. It returns the store, a
// health probe and a cleanup function.
func openStateStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (snapshot.Store, handlers.CheckFunc, func(), error) {
	switch cfg.State.Backend {
	case config.BackendPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.State.Postgres.URL
		pgCfg.Host = cfg.State.Postgres.Host
		pgCfg.Port = cfg.State.Postgres.Port
		pgCfg.User = cfg.State.Postgres.User
		pgCfg.Password = cfg.State.Postgres.Password
		pgCfg.Database = cfg.State.Postgres.Name
		pgCfg.SSLMode = cfg.State.Postgres.SSLMode
		pgCfg.MaxConns = int32(cfg.State.Postgres.MaxConns)

		log.Info("connecting to database...")
		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewStateRepository(conn, cfg.State.ID), handlers.PingCheck(conn), conn.Close, nil

	case config.BackendRedis:
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.State.Redis.Host
		redisCfg.Port = cfg.State.Redis.Port
		redisCfg.Password = cfg.State.Redis.Password
		redisCfg.DB = cfg.State.Redis.DB
		redisCfg.PoolSize = cfg.State.Redis.PoolSize

		log.Info("connecting to Redis...")
		cache, err := redis.NewCache(redisCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		closeCache := func() {
			if err := cache.Close(); err != nil {
				log.Warn("failed to close Redis", zap.Error(err))
			}
		}
		return redis.NewStateStore(cache, cfg.State.ID, cfg.State.History), handlers.PingCheck(cache), closeCache, nil

	default:
		log.Warn("using the in-memory state store; state is lost on restart")
		store := memory.NewStateStore()
		return store, handlers.PingCheck(store), func() {}, nil
	}
}
