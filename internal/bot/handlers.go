package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/park285/growworld-bot/internal/adapter/worldpresenter"
	"github.com/park285/growworld-bot/internal/command"
	"github.com/park285/growworld-bot/internal/fetchguard"
	"github.com/park285/growworld-bot/internal/worldimg"
	"github.com/park285/growworld-bot/pkg/worlddto"
)

const minWorldNameLen = 2

func (b *Bot) registerCommands() error {
	cmds := []command.Command{
		{
			Name:        "drawworld",
			Aliases:     []string{"world", "w"},
			Usage:       "drawworld <name>",
			Summary:     "show the rendered image of a world",
			RequiresArg: true,
			Handler:     b.drawWorld,
		},
		{
			Name:        "worldinfo",
			Usage:       "worldinfo <name>",
			Summary:     "show where a world's image is served from",
			RequiresArg: true,
			Handler:     b.worldInfo,
		},
		{Name: "renderinfo", Usage: "renderinfo", Summary: "explain how to render a world", Handler: b.renderInfo},
		{Name: "test", Usage: "test", Summary: "check that the bot is alive", Handler: b.test},
		{Name: "helpbot", Usage: "helpbot", Summary: "list commands", Handler: b.helpBot},
	}
	for _, c := range cmds {
		if err := b.router.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func displayName(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (b *Bot) log(inv command.Invocation) *zap.Logger {
	return b.logger.With(zap.String("req_id", inv.RequestID), zap.String("room", inv.Room))
}

func (b *Bot) drawWorld(ctx context.Context, inv command.Invocation) error {
	name := strings.TrimSpace(inv.Args)
	if utf8.RuneCountInString(name) < minWorldNameLen {
		return &command.ValidationError{Field: "world", Reason: "shorter than 2 characters"}
	}
	id := worldimg.Normalize(name)
	if id == "" {
		return &command.ValidationError{Field: "world", Reason: "no usable characters"}
	}
	log := b.log(inv).With(zap.String("world", id))

	release, ok, err := b.guard.Acquire(ctx, fetchguard.Key(inv.Room, id))
	switch {
	case err != nil:
		// the guard only de-duplicates, so an unreachable backend must not block fetches
		log.Warn("fetch_guard_unavailable", zap.Error(err))
		release = func() {}
	case !ok:
		log.Info("world_fetch_busy")
		return b.presenter.Text(ctx, inv.Room, b.formatter.Busy(displayName(name)))
	}
	defer release()

	res := b.fetcher.Fetch(ctx, name)
	if !res.OK() {
		log.Info("world_not_found", zap.Int("attempts", res.Attempts))
		return b.presenter.Text(ctx, inv.Room, b.formatter.NotFound(displayName(name), requester(inv)))
	}

	img := worlddto.WorldImage{
		CanonicalID: res.CanonicalID,
		DisplayName: displayName(name),
		SourceURL:   res.SourceURL,
		PNG:         res.Image,
		Requester:   requester(inv),
		FetchedAt:   b.now(),
	}
	return b.deliver(ctx, inv, img, log)
}

// deliver sends the image followed by its metadata. When the image cannot be
// sent the room still gets a link to it.
func (b *Bot) deliver(ctx context.Context, inv command.Invocation, img worlddto.WorldImage, log *zap.Logger) error {
	png := img.PNG
	if b.imageMaxBytes > 0 && len(png) > b.imageMaxBytes {
		fitted, err := worldimg.FitPNG(png, b.imageMaxBytes)
		if err != nil {
			log.Warn("world_image_fit_failed", zap.Int("bytes", len(png)), zap.Error(err))
		} else {
			log.Info("world_image_downscaled", zap.Int("from", len(png)), zap.Int("to", len(fitted)))
		}
		png = fitted
	}

	var sendErr error
	if len(png) == 0 {
		sendErr = worldimg.ErrTooLarge
	} else {
		sendErr = b.presenter.Image(ctx, inv.Room, png)
	}
	if sendErr != nil {
		log.Warn("world_image_send_failed", zap.Error(sendErr))
		if err := b.presenter.Text(ctx, inv.Room, b.formatter.ImageFallback(img)); err != nil {
			return fmt.Errorf("send image link: %w", errors.Join(sendErr, err))
		}
		return nil
	}
	return b.presenter.Text(ctx, inv.Room, b.formatter.Success(img))
}

func (b *Bot) worldInfo(ctx context.Context, inv command.Invocation) error {
	name := strings.TrimSpace(inv.Args)
	id := worldimg.Normalize(name)
	primary, fallback := b.fetcher.Endpoints().URLs(id)
	links := worlddto.WorldLinks{
		CanonicalID: id,
		DisplayName: displayName(name),
		Name:        name,
		PrimaryURL:  primary,
		FallbackURL: fallback,
	}
	return b.presenter.Text(ctx, inv.Room, b.formatter.WorldInfo(links, requester(inv)))
}

func (b *Bot) renderInfo(ctx context.Context, inv command.Invocation) error {
	return b.presenter.Text(ctx, inv.Room, b.formatter.RenderInfo())
}

func (b *Bot) test(ctx context.Context, inv command.Invocation) error {
	return b.presenter.Text(ctx, inv.Room, b.formatter.Test())
}

func (b *Bot) helpBot(ctx context.Context, inv command.Invocation) error {
	return b.presenter.Text(ctx, inv.Room, b.formatter.Help(requester(inv), b.helpEntries()))
}

// helpEntries lists registered commands by name, each followed by its aliases.
func (b *Bot) helpEntries() []worldpresenter.HelpEntry {
	var out []worldpresenter.HelpEntry
	for _, c := range b.router.Commands() {
		usage := c.Usage
		if usage == "" {
			usage = c.Name
		}
		out = append(out, worldpresenter.HelpEntry{Usage: usage, Summary: c.Summary})
		args := strings.TrimPrefix(usage, c.Name)
		for _, alias := range c.Aliases {
			out = append(out, worldpresenter.HelpEntry{
				Usage:   alias + args,
				Summary: "same as " + b.prefix + c.Name,
			})
		}
	}
	return out
}
