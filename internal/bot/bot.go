// Package bot wires chat commands to the world image retriever.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/growworld-bot/internal/adapter/worldpresenter"
	"github.com/park285/growworld-bot/internal/command"
	"github.com/park285/growworld-bot/internal/fetchguard"
	"github.com/park285/growworld-bot/internal/irisfast"
	"github.com/park285/growworld-bot/internal/worldimg"
)

// DefaultCommandTimeout bounds one command, fetch retries included.
const DefaultCommandTimeout = fetchguard.DefaultTTL

// Fetcher is the part of worldimg.Fetcher the bot needs.
type Fetcher interface {
	Fetch(ctx context.Context, worldName string) worldimg.Result
	Endpoints() worldimg.Endpoints
}

type Deps struct {
	Fetcher   Fetcher
	Presenter *worldpresenter.Presenter
	Formatter *worldpresenter.Formatter
	Guard     fetchguard.Guard
	Logger    *zap.Logger

	Prefix       string
	AllowedRooms []string

	// ImageMaxBytes caps the PNG handed to the gateway; 0 disables downscaling.
	ImageMaxBytes  int
	CommandTimeout time.Duration

	// BaseContext parents every command started from OnMessage.
	BaseContext context.Context
	Now         func() time.Time
}

type Bot struct {
	fetcher   Fetcher
	presenter *worldpresenter.Presenter
	formatter *worldpresenter.Formatter
	guard     fetchguard.Guard
	logger    *zap.Logger
	router    *command.Router

	prefix        string
	allowedRooms  map[string]struct{}
	imageMaxBytes int
	timeout       time.Duration

	baseCtx context.Context
	now     func() time.Time
	wg      sync.WaitGroup
}

func New(d Deps) (*Bot, error) {
	if d.Fetcher == nil {
		return nil, errors.New("bot: fetcher is required")
	}
	if d.Presenter == nil || d.Formatter == nil {
		return nil, errors.New("bot: presenter and formatter are required")
	}
	if strings.TrimSpace(d.Prefix) == "" {
		return nil, errors.New("bot: prefix is required")
	}

	b := &Bot{
		fetcher:       d.Fetcher,
		presenter:     d.Presenter,
		formatter:     d.Formatter,
		guard:         d.Guard,
		logger:        d.Logger,
		router:        command.NewRouter(),
		prefix:        strings.TrimSpace(d.Prefix),
		imageMaxBytes: d.ImageMaxBytes,
		timeout:       d.CommandTimeout,
		baseCtx:       d.BaseContext,
		now:           d.Now,
	}
	if b.guard == nil {
		b.guard = fetchguard.Nop{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.timeout <= 0 {
		b.timeout = DefaultCommandTimeout
	}
	if b.baseCtx == nil {
		b.baseCtx = context.Background()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if len(d.AllowedRooms) > 0 {
		b.allowedRooms = make(map[string]struct{}, len(d.AllowedRooms))
		for _, r := range d.AllowedRooms {
			b.allowedRooms[r] = struct{}{}
		}
	}

	if err := b.registerCommands(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bot) Router() *command.Router { return b.router }

// OnMessage is the gateway callback. It filters cheaply and runs each command
// on its own goroutine so the read loop never blocks on a fetch.
func (b *Bot) OnMessage(msg *irisfast.Message) {
	if !b.accepts(msg) {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(b.baseCtx, b.timeout)
		defer cancel()
		b.Handle(ctx, msg)
	}()
}

func (b *Bot) accepts(msg *irisfast.Message) bool {
	if msg == nil || strings.TrimSpace(msg.Msg) == "" {
		return false
	}
	if b.allowedRooms != nil {
		if _, ok := b.allowedRooms[msg.Room]; !ok {
			b.logger.Debug("room_ignored", zap.String("room", msg.Room))
			return false
		}
	}
	return strings.HasPrefix(strings.TrimSpace(msg.Msg), b.prefix)
}

// Handle parses and runs one message synchronously. Dispatch failures are
// turned into replies here; handlers only report them.
func (b *Bot) Handle(ctx context.Context, msg *irisfast.Message) {
	if !b.accepts(msg) {
		return
	}
	name, args, ok := command.Parse(b.prefix, msg.Msg)
	if !ok {
		return
	}
	inv := command.Invocation{
		Name:      name,
		Args:      args,
		Room:      msg.Room,
		Sender:    msg.SenderName(),
		UserID:    msg.UserID(),
		RequestID: uuid.NewString(),
	}
	log := b.logger.With(
		zap.String("req_id", inv.RequestID),
		zap.String("room", inv.Room),
		zap.String("cmd", inv.Name))

	started := b.now()
	err := b.router.Dispatch(ctx, inv)
	if err == nil {
		log.Info("command_done", zap.Duration("took", b.now().Sub(started)))
		return
	}

	var reply string
	var verr *command.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Info("command_invalid", zap.String("field", verr.Field), zap.String("reason", verr.Reason))
		reply = b.formatter.Validation()
	case errors.Is(err, command.ErrUnknownCommand):
		log.Info("command_unknown")
		reply = b.formatter.Unknown()
	case errors.Is(err, command.ErrMissingArgument):
		log.Info("command_missing_argument")
		reply = b.formatter.Usage()
	default:
		log.Error("command_error", zap.Error(err))
		reply = b.formatter.Apology()
	}
	if sendErr := b.presenter.Text(ctx, inv.Room, reply); sendErr != nil {
		log.Warn("reply_failed", zap.Error(sendErr))
	}
}

// Wait blocks until every command started by OnMessage has returned or ctx is done.
func (b *Bot) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for commands: %w", ctx.Err())
	}
}

func requester(inv command.Invocation) string {
	if inv.Sender != "" {
		return inv.Sender
	}
	if inv.UserID != "" {
		return inv.UserID
	}
	return "unknown"
}
