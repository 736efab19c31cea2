package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apidiscord "github.com/nosgoth/eldergod/api/discord"
	apirest "github.com/nosgoth/eldergod/api/rest"
	"github.com/nosgoth/eldergod/audit"
	"github.com/nosgoth/eldergod/cache"
	"github.com/nosgoth/eldergod/config"
	dbadapter "github.com/nosgoth/eldergod/db"
	"github.com/nosgoth/eldergod/game/ability"
	"github.com/nosgoth/eldergod/game/bonus"
	"github.com/nosgoth/eldergod/game/character"
	"github.com/nosgoth/eldergod/game/clan"
	"github.com/nosgoth/eldergod/game/lore"
	"github.com/nosgoth/eldergod/game/progression"
	"github.com/nosgoth/eldergod/metrics"
	mw "github.com/nosgoth/eldergod/middleware"
	"github.com/nosgoth/eldergod/model"
	"github.com/nosgoth/eldergod/plugin/hook"
	"github.com/nosgoth/eldergod/scheduler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKeyHash == "" || cfg.Security.JWTSecret == "" {
		logger.Warn("server.admin_key_hash or security.jwt_secret is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Game Systems ----
	clans, err := clan.Default(cfg.Clans)
	if err != nil {
		log.Fatalf("clans: %v", err)
	}
	chars := character.NewRepository(db, c, cfg.Progression.CharacterCacheTTL)
	loreSvc, err := lore.NewService(db, cfg.Locale, logger, nil)
	if err != nil {
		log.Fatalf("locale: %v", err)
	}
	hooks := hook.NewCenter(logger)

	// ---- Discord ----
	bot, err := apidiscord.NewBot(cfg.Discord, logger)
	if err != nil {
		log.Fatalf("discord: %v", err)
	}
	guild := apidiscord.NewGuild(bot.Session(), cfg.Discord.GuildID, logger)

	prog := progression.New(progression.Deps{
		DB:         db,
		Characters: chars,
		Abilities:  ability.NewManager(db, nil),
		Catalog:    ability.NewCatalog(cfg.Abilities.Cooldowns),
		Ledger:     bonus.NewLedger(db),
		Clans:      clans,
		Guild:      guild,
		Cache:      c,
		PubSub:     pubsub,
		Audit:      auditSvc,
		Hooks:      hooks,
		Logger:     logger,
	}, progression.OptionsFromConfig(cfg))

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	refreshLore := func(ctx context.Context) error { return loreSvc.Refresh(ctx) }
	sampleClans := func(ctx context.Context) error { return metrics.SampleClans(ctx, chars, clans) }
	sched.AddTicker("lore_refresh", cfg.Scheduler.LoreRefresh, refreshLore)
	sched.AddTicker("metrics_sample", cfg.Scheduler.MetricsSample, sampleClans)
	sched.AddDelay("warmup", 0, func(ctx context.Context) error {
		return errors.Join(refreshLore(ctx), sampleClans(ctx))
	})

	// ---- Discord Router ----
	router := apidiscord.NewRouter(logger)
	apidiscord.NewHandlers(prog, loreSvc, auditSvc, logger).RegisterHandlers(router)

	if err := bot.Start(router, hooks, apidiscord.Commands(loreSvc.Allowed(), loreSvc.Default())); err != nil {
		log.Fatalf("discord: %v", err)
	}
	logger.Info("Discord bot connected", zap.String("guild_id", cfg.Discord.GuildID))

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger), mw.Metrics())
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	healthH := apirest.NewHealthHandler(db, c)
	r.GET("/health", healthH.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(c, cfg.Security, cfg.Server.AdminKeyHash, logger)
	rankH := apirest.NewRankingHandler(prog, logger)
	adminH := apirest.NewAdminHandler(prog, auditSvc, loreSvc, sched, logger)

	api := r.Group("/api")
	{
		api.GET("/ranking", rankH.Top)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPs))
		adminG.POST("/login", authH.Login)

		authed := adminG.Group("")
		authed.Use(mw.AdminAuth(cfg.Security, c))
		authed.POST("/logout", authH.Logout)
		authed.POST("/characters/:id/guarantee", adminH.Guarantee)
		authed.GET("/characters/:id/audit", adminH.Audit)
		authed.POST("/quotes", adminH.AddQuotes)
		authed.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := bot.Stop(); err != nil {
		logger.Warn("discord close", zap.Error(err))
	}
}
