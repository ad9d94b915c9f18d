// Package worldpresenter turns world lookups into KakaoTalk replies.
package worldpresenter

import (
	"fmt"
	"strings"

	"github.com/park285/growworld-bot/internal/msgcat"
	"github.com/park285/growworld-bot/internal/util"
	"github.com/park285/growworld-bot/pkg/worlddto"
)

const fetchedAtLayout = "2006-01-02 15:04:05"

// PrefixProvider exposes the command prefix replies should mention.
type PrefixProvider interface {
	Prefix() string
}

type StaticPrefix string

func (p StaticPrefix) Prefix() string { return string(p) }

// Formatter renders reply texts from the message catalog. When a template is
// missing or fails to render, a short built-in text is used instead.
type Formatter struct {
	prefixProvider PrefixProvider
	catalog        *msgcat.Catalog
}

func NewFormatter(provider PrefixProvider, catalog *msgcat.Catalog) *Formatter {
	return &Formatter{prefixProvider: provider, catalog: catalog}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

func (f *Formatter) render(key string, data map[string]any, fallback string) string {
	if f == nil || f.catalog == nil {
		return fallback
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Prefix"] = f.Prefix()
	out, err := f.catalog.Render(key, data)
	if err != nil || strings.TrimSpace(out) == "" {
		return fallback
	}
	return out
}

// fold hides everything below the header behind KakaoTalk's "See more".
func (f *Formatter) fold(text, headerKey string) string {
	header := f.render(headerKey, nil, "")
	if header == "" {
		return text
	}
	return util.SeeMore(text, header, f.render("see_more.suffix", nil, ""))
}

func (f *Formatter) Success(img worlddto.WorldImage) string {
	return f.render("draw.success", map[string]any{
		"World":     img.DisplayName,
		"SourceURL": img.SourceURL,
		"Requester": img.Requester,
		"FetchedAt": img.FetchedAt.Format(fetchedAtLayout),
	}, fmt.Sprintf("🌍 World: %s\n🔗 Source: %s", img.DisplayName, img.SourceURL))
}

// ImageFallback is sent instead of the image when the image reply fails.
func (f *Formatter) ImageFallback(img worlddto.WorldImage) string {
	return f.render("draw.image_fallback", map[string]any{
		"World":     img.DisplayName,
		"SourceURL": img.SourceURL,
	}, fmt.Sprintf("📸 World %s\n%s", img.DisplayName, img.SourceURL))
}

func (f *Formatter) NotFound(displayName, requester string) string {
	text := f.render("draw.not_found", map[string]any{
		"World":     displayName,
		"Requester": requester,
	}, fmt.Sprintf("❌ World '%s' not found.", displayName))
	return f.fold(text, "draw.not_found_header")
}

func (f *Formatter) Busy(displayName string) string {
	return f.render("draw.busy", map[string]any{"World": displayName},
		fmt.Sprintf("⏳ World %s is already being fetched.", displayName))
}

func (f *Formatter) WorldInfo(links worlddto.WorldLinks, requester string) string {
	text := f.render("worldinfo.body", map[string]any{
		"World":       links.DisplayName,
		"Name":        links.Name,
		"PrimaryURL":  links.PrimaryURL,
		"FallbackURL": links.FallbackURL,
		"Requester":   requester,
	}, fmt.Sprintf("🌍 %s\n%s\n%s", links.DisplayName, links.PrimaryURL, links.FallbackURL))
	return f.fold(text, "worldinfo.header")
}

func (f *Formatter) RenderInfo() string {
	text := f.render("renderinfo.body", nil, "Run /renderworld in the world you want to show. Worlds can be rendered once every 24 hours.")
	return f.fold(text, "renderinfo.header")
}

func (f *Formatter) Test() string {
	return f.render("test.ok", nil, "✅ The bot is working!")
}

// HelpEntry is one line of the help listing. Usage starts with the command
// name and is shown after the prefix.
type HelpEntry struct {
	Usage   string
	Summary string
}

func (f *Formatter) Help(requester string, entries []HelpEntry) string {
	p := f.Prefix()
	usages := make([]string, 0, len(entries))
	for _, e := range entries {
		usages = append(usages, p+e.Usage)
	}
	text := f.render("help.body", map[string]any{"Requester": requester, "Commands": entries},
		"Commands: "+strings.Join(usages, ", "))
	return f.fold(text, "help.header")
}

func (f *Formatter) Validation() string {
	return f.render("draw.validation", nil, "❌ Please specify a valid world name.")
}

func (f *Formatter) Usage() string {
	return f.render("errors.missing_argument", nil, "❌ Please specify a world name.")
}

func (f *Formatter) Unknown() string {
	return f.render("errors.unknown_command", nil, "❌ Command not recognized.")
}

func (f *Formatter) Apology() string {
	return f.render("errors.generic", nil, "❌ Something went wrong. Please try again.")
}
