// Package cli is the worldfetch operator tool: it runs the bot's retrieval
// path from a terminal without a chat gateway.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/growworld-bot/internal/obslog"
	"github.com/park285/growworld-bot/internal/worldimg"
)

type globalFlags struct {
	primary  string
	fallback string
	timeout  time.Duration
	verbose  bool
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "worldfetch",
		Short:        "Fetch rendered Growtopia world images",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.primary, "primary", worldimg.DefaultPrimaryBaseURL, "primary image base URL")
	pf.StringVar(&g.fallback, "fallback", worldimg.DefaultFallbackBaseURL, "fallback image base URL")
	pf.DurationVar(&g.timeout, "timeout", worldimg.DefaultTimeout, "per-request timeout")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log every request to stderr")

	cmd.AddCommand(fetchCmd(g), urlsCmd(g))
	return cmd
}

func (g *globalFlags) endpoints() worldimg.Endpoints {
	return worldimg.Endpoints{Primary: g.primary, Fallback: g.fallback}
}

func (g *globalFlags) logger() *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	l, err := obslog.New(obslog.Options{Level: zap.DebugLevel, Format: "console", Console: true})
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (g *globalFlags) fetcher(opts ...worldimg.Option) *worldimg.Fetcher {
	base := []worldimg.Option{
		worldimg.WithEndpoints(g.endpoints()),
		worldimg.WithTimeout(g.timeout),
		worldimg.WithLogger(g.logger()),
	}
	return worldimg.NewFetcher(append(base, opts...)...)
}
