package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/growworld-bot/internal/config"
	"github.com/park285/growworld-bot/internal/irisfast"
	"github.com/park285/growworld-bot/internal/obslog"
)

// irischeck verifies gateway credentials: it reads /config over REST, then
// opens the WebSocket and logs incoming messages for a short window.
func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.New(obslog.Options{Level: zap.DebugLevel, Format: "console", Console: true})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(cfg.Headers),
		irisfast.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	icfg, err := client.GetConfig(ctx)
	if err != nil {
		logger.Error("config_check_failed", zap.Error(err))
	} else {
		logger.Info("config_check_ok",
			zap.String("bot_name", icfg.BotName),
			zap.Int("port", icfg.Port),
			zap.Int("polling", icfg.PollingSpeed),
			zap.Int("rate", icfg.MessageRate),
			zap.String("endpoint", icfg.WebserverEndpoint))
	}

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 0, time.Second)
	ws.SetHeaderProvider(cfg.Headers)
	ws.SetLogger(logger)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		logger.Info("ws_message",
			zap.String("room", msg.Room),
			zap.String("from", msg.SenderName()),
			zap.String("user_id", msg.UserID()),
			zap.String("text", msg.Msg))
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		logger.Error("ws_connect_failed", zap.Error(err))
		return
	}

	time.Sleep(10 * time.Second)

	_ = ws.Close(context.Background())
}
