package main

import (
	"context"

	"github.com/0xlajaz/xandeum-nexus/internal/aggregator"
	"github.com/0xlajaz/xandeum-nexus/internal/alerts"
	"github.com/0xlajaz/xandeum-nexus/internal/api"
	"github.com/0xlajaz/xandeum-nexus/internal/bot"
	"github.com/0xlajaz/xandeum-nexus/internal/cache"
	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/credits"
	"github.com/0xlajaz/xandeum-nexus/internal/diagnosis"
	"github.com/0xlajaz/xandeum-nexus/internal/gemini"
	"github.com/0xlajaz/xandeum-nexus/internal/geolocation"
	"github.com/0xlajaz/xandeum-nexus/internal/history"
	"github.com/0xlajaz/xandeum-nexus/internal/scoring"
	"github.com/0xlajaz/xandeum-nexus/internal/telemetry"
	"github.com/0xlajaz/xandeum-nexus/internal/watchdog"
	"github.com/0xlajaz/xandeum-nexus/internal/watchlist"
	"github.com/0xlajaz/xandeum-nexus/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx := context.Background()

	resolver := geolocation.Open(cfg.IP2LocationDBPath)
	defer resolver.Close()

	// Watch-list: Firestore when configured, in-memory otherwise.
	var watches watchlist.Store
	if cfg.FirebaseProjectID != "" {
		fs, err := watchlist.NewFirestoreStore(ctx, cfg)
		if err != nil {
			logrus.Fatalf("Failed to initialize Firestore watch-list: %v", err)
		}
		defer fs.Close()
		watches = fs
	} else {
		logrus.Warn("Firebase not configured, watch-list will not survive restarts")
		watches = watchlist.NewMemoryStore()
	}

	redisCache := cache.NewCache(cfg)

	hist, err := history.Open(cfg.HistoryDBPath, cfg.HistoryMinInterval, cfg.HistoryRetainedRows)
	if err != nil {
		logrus.Fatalf("Failed to open history database: %v", err)
	}
	defer hist.Close()

	scorer := scoring.New(cfg)
	diagnoser := diagnosis.New(scorer)
	agg := aggregator.New(cfg, nil)
	creditsClient := credits.NewClient(cfg)
	builder := telemetry.NewBuilder(scorer, resolver)

	engine := alerts.NewEngine(cfg, diagnoser, scorer, nil, watches, redisCache)
	engine.LoadMutes(ctx)

	var aiClient *gemini.Client
	if cfg.GeminiAPIKey != "" {
		aiClient, err = gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logrus.Warnf("Failed to initialize Gemini client, AI summaries disabled: %v", err)
		}
	}

	wd := watchdog.New(cfg, agg, creditsClient, engine, builder, hist, redisCache)

	if cfg.TelegramBotToken != "" {
		tgBot, err := bot.NewBot(cfg, watches, engine, agg, scorer, diagnoser, wd, aiClient)
		if err != nil {
			logrus.Errorf("Failed to initialize Telegram bot: %v", err)
		} else {
			engine.SetSink(tgBot)
			go func() {
				if err := tgBot.Start(); err != nil {
					logrus.Errorf("Telegram bot stopped with error: %v", err)
				}
			}()
		}
	}

	wd.Start()
	defer wd.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS())

	handler := api.NewHandler(cfg, wd, agg, creditsClient, builder, hist, redisCache)
	api.SetupRoutes(r, handler)

	logrus.Infof("Starting server on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logrus.Fatal("Failed to start server:", err)
	}
}
