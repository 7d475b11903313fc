package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tradeshare/internal/app"
	"tradeshare/internal/model"
	"tradeshare/internal/pipeline"
	"tradeshare/internal/query"
)

type metaFile struct {
	GeneratedAt string `json:"generated_at"`
	RunID       string `json:"run_id"`
	Provider    string `json:"provider"`
	Year        int    `json:"year"`
	Reporters   int    `json:"reporters"`
	ExportEdges int    `json:"export_edges"`
	ImportEdges int    `json:"import_edges"`
}

type latestFile struct {
	GeneratedAt string        `json:"generated_at"`
	Top         int           `json:"top"`
	Rows        []latestEntry `json:"rows"`
}

type latestEntry struct {
	ISO3   string    `json:"iso3"`
	Name   string    `json:"name"`
	Export flowBlock `json:"export"`
	Import flowBlock `json:"import"`
}

type flowBlock struct {
	Partners int           `json:"partners"`
	Top      []query.Share `json:"top"`
	Other    float64       `json:"other"`
}

func (b flowBlock) HasData() bool {
	return b.Partners > 0
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "publisher build failed:", err)
		os.Exit(1)
	}
}

type buildOptions struct {
	configPath string
	overrides  app.Overrides
	outDir     string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "publisher",
		Short:         "Export query results as static JSON",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	opts := &buildOptions{}
	build := &cobra.Command{
		Use:   "build",
		Short: "Write meta.json and latest.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts)
		},
	}
	flags := build.Flags()
	flags.StringVar(&opts.outDir, "out", "site/data", "output directory")
	flags.StringVar(&opts.configPath, "config", "", "config file")
	flags.StringVar(&opts.overrides.Provider, "provider", "", "provider id: wits or comtrade")
	flags.IntVar(&opts.overrides.Year, "year", 0, "data year")
	flags.IntVar(&opts.overrides.Top, "top", 0, "partners listed per reporter and flow")
	flags.StringVar(&opts.overrides.Backend, "cache-backend", "", "cache backend: file, sqlite or none")
	flags.StringVar(&opts.overrides.CacheDir, "cache-dir", "", "cache directory")

	root.AddCommand(build)
	return root
}

func runBuild(cmd *cobra.Command, opts *buildOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := app.Load(opts.configPath, opts.overrides, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	engine, result, err := a.Engine(ctx, pipeline.Options{})
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	meta := metaFile{
		GeneratedAt: now,
		RunID:       result.Stats.RunID,
		Provider:    a.Config.Provider,
		Year:        a.Config.Year,
		Reporters:   result.Directory.Len(),
		ExportEdges: result.Export.EdgeCount(),
		ImportEdges: result.Import.EdgeCount(),
	}
	latest, err := buildLatest(engine, a.Config.Top)
	if err != nil {
		return err
	}

	if err := writeSite(opts.outDir, meta, latestFile{GeneratedAt: now, Top: a.Config.Top, Rows: latest}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "publisher build complete (out=%s reporters=%d)\n", opts.outDir, len(latest))
	return nil
}

func writeSite(outDir string, meta metaFile, latest latestFile) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := writeJSON(filepath.Join(outDir, "meta.json"), meta); err != nil {
		return fmt.Errorf("failed to write meta.json: %w", err)
	}
	if err := writeJSON(filepath.Join(outDir, "latest.json"), latest); err != nil {
		return fmt.Errorf("failed to write latest.json: %w", err)
	}
	return nil
}

// buildLatest lists every reporter with at least one partner in either flow,
// in directory order.
func buildLatest(engine *query.Engine, top int) ([]latestEntry, error) {
	reporters := engine.Directory().Reporters()
	results := make([]latestEntry, 0, len(reporters))
	for _, reporter := range reporters {
		entry := latestEntry{ISO3: reporter.ISO3, Name: reporter.Name}
		for _, flow := range model.Flows {
			block, err := buildFlowBlock(engine, reporter.ISO3, flow, top)
			if err != nil {
				return nil, fmt.Errorf("reporter %s flow %s: %w", reporter.ISO3, flow, err)
			}
			if flow == model.FlowImport {
				entry.Import = block
			} else {
				entry.Export = block
			}
		}
		if !entry.Export.HasData() && !entry.Import.HasData() {
			continue
		}
		results = append(results, entry)
	}
	return results, nil
}

func buildFlowBlock(engine *query.Engine, iso3 string, flow model.Flow, top int) (flowBlock, error) {
	partners, err := engine.Partners(iso3, flow)
	if err != nil {
		return flowBlock{}, err
	}
	if len(partners) == 0 {
		return flowBlock{Top: []query.Share{}}, nil
	}
	slices, err := engine.Distribution(iso3, flow, top)
	if err != nil {
		return flowBlock{}, err
	}
	last := len(slices) - 1
	return flowBlock{
		Partners: len(partners),
		Top:      slices[:last],
		Other:    slices[last].Weight,
	}, nil
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
