package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tradeshare/internal/app"
	"tradeshare/internal/pipeline"
	"tradeshare/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "explorer failed:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	overrides  app.Overrides
	limit      int
	allowlist  string
	prompts    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "explorer",
		Short:         "Browse bilateral trade shares from the cached graphs",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplorer(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "config file")
	flags.StringVar(&opts.overrides.Provider, "provider", "", "provider id: wits or comtrade")
	flags.IntVar(&opts.overrides.Year, "year", 0, "data year")
	flags.IntVar(&opts.overrides.Top, "top", 0, "partners listed in tables and charts")
	flags.StringVar(&opts.overrides.Backend, "cache-backend", "", "cache backend: file, sqlite or none")
	flags.StringVar(&opts.overrides.CacheDir, "cache-dir", "", "cache directory")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level")
	flags.IntVar(&opts.limit, "limit", 0, "limit number of reporters (0 = all)")
	flags.StringVar(&opts.allowlist, "allowlist", "", "path to allowlist file (empty = no filter)")
	flags.StringVar(&opts.prompts, "prompts", "auto", "print menu and prompts: auto, always or never")
	return cmd
}

func runExplorer(cmd *cobra.Command, opts *options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := app.Load(opts.configPath, opts.overrides, cmd.ErrOrStderr())
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

	engine, _, err := a.Engine(ctx, pipeline.Options{Limit: opts.limit, Allowlist: allowed})
	if err != nil {
		return err
	}

	prompts, err := showPrompts(opts.prompts, cmd.InOrStdin())
	if err != nil {
		return err
	}
	s := session.New(engine, cmd.InOrStdin(), cmd.OutOrStdout(), session.Options{
		Prompts: prompts,
		Top:     a.Config.Top,
	})
	return s.Run(ctx)
}

// showPrompts resolves the --prompts mode. In auto mode prompts are shown
// only when input comes from a terminal.
func showPrompts(mode string, in io.Reader) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		f, ok := in.(*os.File)
		if !ok {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	default:
		return false, fmt.Errorf("unknown prompts mode: %s", mode)
	}
}
