package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/park285/growworld-bot/internal/worldimg"
)

var ErrWorldNotFound = errors.New("world image not found or unavailable")

func fetchCmd(g *globalFlags) *cobra.Command {
	var output string
	var maxBytes int

	c := &cobra.Command{
		Use:   "fetch <world>",
		Short: "Download a world image (primary, then fallback, with retries)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			res := g.fetcher().Fetch(cmd.Context(), name)
			if !res.OK() {
				return fmt.Errorf("%w: %s after %d attempts", ErrWorldNotFound, res.CanonicalID, res.Attempts)
			}

			data, err := worldimg.FitPNG(res.Image, maxBytes)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = res.CanonicalID + ".png"
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", path, res.SourceURL, len(data))
			return nil
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "", "output file (default <world>.png)")
	c.Flags().IntVar(&maxBytes, "max-bytes", 0, "downscale the image until it fits (0 keeps it as is)")
	return c
}

func urlsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "urls <world>",
		Short: "Print the image URLs for a world without fetching",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := worldimg.Normalize(strings.Join(args, " "))
			primary, fallback := g.endpoints().URLs(id)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "primary\t%s\n", primary)
			fmt.Fprintf(out, "fallback\t%s\n", fallback)
			return nil
		},
	}
}
