package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tradeshare/internal/app"
	"tradeshare/internal/pipeline"
)

func main() {
	cmd, err := newRootCmd().ExecuteC()
	if err != nil {
		fmt.Fprintf(os.Stderr, "collector %s failed: %v\n", cmd.Name(), err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	overrides  app.Overrides
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "collector",
		Short:         "Fetch partner shares and build the cached share graphs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: ./tradeshare.yaml or $XDG_CONFIG_HOME/tradeshare/tradeshare.yaml)")
	flags.StringVar(&opts.overrides.Provider, "provider", "", "provider id: wits or comtrade")
	flags.IntVar(&opts.overrides.Year, "year", 0, "data year")
	flags.StringVar(&opts.overrides.Backend, "cache-backend", "", "cache backend: file, sqlite or none")
	flags.StringVar(&opts.overrides.CacheDir, "cache-dir", "", "cache directory")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level")

	root.AddCommand(newRunCmd(opts), newCacheCmd(opts))
	return root
}

type runOptions struct {
	limit     int
	allowlist string
	force     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every pipeline stage, reusing cached documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runCollector(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), root, opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "limit number of reporters (0 = all)")
	cmd.Flags().StringVar(&opts.allowlist, "allowlist", "", "path to allowlist file (empty = no filter)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "delete cached stage documents before running")
	return cmd
}

func runCollector(ctx context.Context, out, logw io.Writer, root *rootOptions, opts *runOptions) error {
	a, err := app.Load(root.configPath, root.overrides, logw)
	if err != nil {
		return err
	}
	defer a.Close()

	var allowed map[string]struct{}
	if strings.TrimSpace(opts.allowlist) != "" {
		allowed, err = pipeline.LoadAllowlist(opts.allowlist)
		if err != nil {
			return err
		}
	}

	result, err := a.Pipeline(pipeline.Options{
		Limit:     opts.limit,
		Allowlist: allowed,
		Force:     opts.force,
	}).Run(ctx)
	if err != nil {
		return err
	}

	stats := result.Stats
	fmt.Fprintf(out, "collector run complete (provider=%s reporters=%d requests=%d success=%d failed=%d)\n",
		a.Config.Provider, stats.Reporters, stats.Requests, stats.Success, stats.Failed,
	)
	if stats.Skipped > 0 {
		fmt.Fprintf(out, "collector run skipped=%d\n", stats.Skipped)
	}
	fmt.Fprintf(out, "collector graphs export_edges=%d import_edges=%d\n",
		result.Export.EdgeCount(), result.Import.EdgeCount(),
	)
	return nil
}

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached documents",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List cached documents",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return listCache(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root)
			},
		},
		&cobra.Command{
			Use:   "clear [name...]",
			Short: "Delete cached documents (all when no names are given)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return clearCache(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, args)
			},
		},
	)
	return cmd
}

func listCache(ctx context.Context, out, logw io.Writer, root *rootOptions) error {
	a, err := app.Load(root.configPath, root.overrides, logw)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.Store.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "cache is empty (backend=%s)\n", a.Config.Cache.Backend)
		return nil
	}

	width := 0
	for _, entry := range entries {
		if len(entry.Name) > width {
			width = len(entry.Name)
		}
	}
	var total uint64
	for _, entry := range entries {
		total += uint64(entry.Size)
		fmt.Fprintf(out, "%-*s  %9s  %s\n", width, entry.Name, humanize.Bytes(uint64(entry.Size)), updatedAt(entry.UpdatedAt))
	}
	fmt.Fprintf(out, "%d documents, %s\n", len(entries), humanize.Bytes(total))
	return nil
}

func updatedAt(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func clearCache(ctx context.Context, out, logw io.Writer, root *rootOptions, names []string) error {
	a, err := app.Load(root.configPath, root.overrides, logw)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(names) == 0 {
		entries, err := a.Store.List(ctx)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			names = append(names, entry.Name)
		}
	}
	for _, name := range names {
		if err := a.Store.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	fmt.Fprintf(out, "collector cache cleared documents=%d\n", len(names))
	return nil
}
