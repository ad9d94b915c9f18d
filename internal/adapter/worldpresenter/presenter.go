package worldpresenter

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrNoTransport = errors.New("presenter has no transport")

// Presenter delivers formatted messages and world images without coupling to the command layer.
type Presenter struct {
	sendMessage func(ctx context.Context, room, message string) error
	sendImage   func(ctx context.Context, room, imageBase64 string) error
}

func NewPresenter(sendMessage func(ctx context.Context, room, message string) error, sendImage func(ctx context.Context, room, imageBase64 string) error) *Presenter {
	return &Presenter{
		sendMessage: sendMessage,
		sendImage:   sendImage,
	}
}

// Text sends message; blank messages are dropped silently.
func (p *Presenter) Text(ctx context.Context, room, message string) error {
	if p == nil || p.sendMessage == nil {
		return ErrNoTransport
	}
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(ctx, room, message)
}

// Image sends png as a base64 image reply.
func (p *Presenter) Image(ctx context.Context, room string, png []byte) error {
	if p == nil || p.sendImage == nil {
		return ErrNoTransport
	}
	if len(png) == 0 {
		return errors.New("empty image")
	}
	return p.sendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
}
