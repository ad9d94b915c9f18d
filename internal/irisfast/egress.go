package irisfast

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const wsWriteTimeout = 5 * time.Second

var errEgressUnavailable = errors.New("egress not available")

// Egress abstracts reply delivery over HTTP or WebSocket.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

const (
	ModeHTTP = "http"
	ModeWS   = "ws"
	ModeAuto = "auto"
)

// NewEgress picks a transport. Auto prefers the WebSocket while it is
// connected and falls back to HTTP once when a ws write fails. Dry-run logs
// instead of sending, whatever the mode.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dryrun {
		return &dryrunEgress{mode: mode, logger: logger}
	}
	switch mode {
	case ModeWS:
		return &wsEgress{ws: ws}
	case ModeAuto:
		return &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}
	default:
		return &httpEgress{c: c}
	}
}

type httpEgress struct{ c *Client }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
	if h == nil || h.c == nil {
		return errEgressUnavailable
	}
	return h.c.SendMessage(ctx, room, message)
}

func (h *httpEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if h == nil || h.c == nil {
		return errEgressUnavailable
	}
	return h.c.SendImage(ctx, room, imageBase64)
}

type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	return w.write(ctx, ReplyRequest{Type: "text", Room: room, Data: message})
}

func (w *wsEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return w.write(ctx, ReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

func (w *wsEgress) connected() bool {
	return w != nil && w.ws != nil && w.ws.State() == WSStateConnected
}

func (w *wsEgress) write(ctx context.Context, req ReplyRequest) error {
	if w == nil || w.ws == nil {
		return errEgressUnavailable
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
	}
	return w.ws.WriteJSON(ctx, &req)
}

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.connected() {
		err := a.ws.SendText(ctx, room, message)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "text"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendText(ctx, room, message)
}

func (a *autoEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if a.ws.connected() {
		err := a.ws.SendImage(ctx, room, imageBase64)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "image"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendImage(ctx, room, imageBase64)
}

type dryrunEgress struct {
	mode   string
	logger *zap.Logger
}

func (d *dryrunEgress) SendText(_ context.Context, room, message string) error {
	d.logger.Info("egress_dryrun",
		zap.String("mode", d.mode),
		zap.String("type", "text"),
		zap.String("room", room),
		zap.Int("len", len(message)))
	return nil
}

func (d *dryrunEgress) SendImage(_ context.Context, room, imageBase64 string) error {
	d.logger.Info("egress_dryrun",
		zap.String("mode", d.mode),
		zap.String("type", "image"),
		zap.String("room", room),
		zap.Int("len", len(imageBase64)))
	return nil
}
