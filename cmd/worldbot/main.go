package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/growworld-bot/internal/adapter/worldpresenter"
	"github.com/park285/growworld-bot/internal/bot"
	appcfg "github.com/park285/growworld-bot/internal/config"
	"github.com/park285/growworld-bot/internal/fetchguard"
	"github.com/park285/growworld-bot/internal/irisfast"
	"github.com/park285/growworld-bot/internal/msgcat"
	"github.com/park285/growworld-bot/internal/obslog"
	"github.com/park285/growworld-bot/internal/worldimg"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(cfg.Headers))

	// set once reconnecting gives up; main then exits with status 1
	var wsFailed atomic.Bool

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(cfg.Headers)
	ws.SetLogger(logger)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		switch state {
		case irisfast.WSStateConnected:
			logger.Info("ws_state", zap.String("state", state.String()))
			logger.Info("bot_ready", zap.String("prefix", cfg.BotPrefix), zap.Strings("rooms", cfg.AllowedRooms))
		case irisfast.WSStateFailed:
			logger.Error("ws_failed", zap.String("url", cfg.IrisWSURL))
			wsFailed.Store(true)
			stop()
		default:
			logger.Info("ws_state", zap.String("state", state.String()))
		}
	})

	egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger)

	guard, closeGuard := newGuard(rootCtx, cfg.RedisURL, logger)
	defer closeGuard()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	endpoints := worldimg.DefaultEndpoints()
	if cfg.WorldPrimaryBaseURL != "" {
		endpoints.Primary = cfg.WorldPrimaryBaseURL
	}
	if cfg.WorldFallbackBaseURL != "" {
		endpoints.Fallback = cfg.WorldFallbackBaseURL
	}
	fetcher := worldimg.NewFetcher(
		worldimg.WithEndpoints(endpoints),
		worldimg.WithTimeout(cfg.WorldFetchTimeout),
		worldimg.WithLogger(logger),
	)

	b, err := bot.New(bot.Deps{
		Fetcher:       fetcher,
		Presenter:     worldpresenter.NewPresenter(egress.SendText, egress.SendImage),
		Formatter:     worldpresenter.NewFormatter(worldpresenter.StaticPrefix(cfg.BotPrefix), catalog),
		Guard:         guard,
		Logger:        logger,
		Prefix:        cfg.BotPrefix,
		AllowedRooms:  cfg.AllowedRooms,
		ImageMaxBytes: cfg.ImageMaxBytes,
		BaseContext:   rootCtx,
	})
	if err != nil {
		logger.Fatal("bot init error", zap.Error(err))
	}
	ws.OnMessage(b.OnMessage)

	cctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		logger.Fatal("ws connect error", zap.Error(err))
	}
	cancel()

	<-rootCtx.Done()
	logger.Info("shutdown")

	sctx, scancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer scancel()
	if err := b.Wait(sctx); err != nil {
		logger.Warn("commands still running at exit", zap.Error(err))
	}
	if err := ws.Close(sctx); err != nil {
		logger.Warn("ws close error", zap.Error(err))
	}
	if wsFailed.Load() {
		scancel()
		closeGuard()
		_ = logger.Sync()
		os.Exit(1)
	}
}

// newGuard uses Redis when configured so several bot replicas share holds,
// and an in-process guard otherwise.
func newGuard(ctx context.Context, redisURL string, logger *zap.Logger) (fetchguard.Guard, func()) {
	if redisURL == "" {
		return fetchguard.NewMemory(fetchguard.DefaultTTL), func() {}
	}
	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	g, err := fetchguard.Dial(dctx, redisURL, fetchguard.DefaultTTL)
	if err != nil {
		logger.Warn("redis guard unavailable, using in-memory guard", zap.Error(err))
		return fetchguard.NewMemory(fetchguard.DefaultTTL), func() {}
	}
	return g, func() { _ = g.Close() }
}
