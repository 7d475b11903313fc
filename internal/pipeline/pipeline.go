// Package pipeline runs the cache-first stages: reporter list, raw partner
// shares per flow, the normalized share table and the two share graphs.
// Each stage is loaded from the store when present and otherwise computed
// from the stage before it and saved.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tradeshare/internal/graph"
	"tradeshare/internal/model"
	"tradeshare/internal/normalize"
	"tradeshare/internal/providers"
	"tradeshare/internal/providers/comtrade"
	"tradeshare/internal/providers/wits"
	"tradeshare/internal/store"
)

type Options struct {
	Year int
	// Limit keeps only the first Limit reporters (0 = all).
	Limit     int
	Allowlist map[string]struct{}
	// Force deletes the stage documents before running.
	Force bool
}

type Stats struct {
	RunID     string
	Reporters int
	Requests  int
	Success   int
	Failed    int
	Skipped   int
	CacheHits []string
	Computed  []string
}

type Result struct {
	Directory *model.Directory
	Table     model.ShareTable
	Export    *graph.Graph
	Import    *graph.Graph
	Stats     Stats
}

// Graph returns the graph of the given flow.
func (r *Result) Graph(flow model.Flow) *graph.Graph {
	if flow == model.FlowImport {
		return r.Import
	}
	return r.Export
}

type Pipeline struct {
	provider providers.Provider
	store    store.Store
	logger   *slog.Logger
	opts     Options
	names    Names
}

func New(provider providers.Provider, st store.Store, logger *slog.Logger, opts Options) *Pipeline {
	if opts.Year <= 0 {
		opts.Year = defaultYear
	}
	if st == nil {
		st = &store.NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider: provider,
		store:    st,
		logger:   logger,
		opts:     opts,
		names:    CacheNames(provider.Name(), opts.Year, opts.Limit, AllowlistKey(opts.Allowlist)),
	}
}

func (p *Pipeline) Names() Names {
	return p.names
}

// Clear deletes every stage document of this pipeline.
func (p *Pipeline) Clear(ctx context.Context) error {
	for _, name := range p.names.All() {
		if err := p.store.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Run executes all stages. A store failure aborts the stage it happens in;
// stages saved before it stay valid for the next run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	run := &runState{
		Pipeline: p,
		stats:    Stats{RunID: uuid.NewString()},
	}
	run.logger = p.logger.With("run_id", run.stats.RunID, "provider", p.provider.Name(), "year", p.opts.Year)

	if p.opts.Force {
		if err := p.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clearing cache: %w", err)
		}
		run.logger.Info("cache cleared", "documents", len(p.names.All()))
	}

	result, err := run.execute(ctx)
	if err != nil {
		return nil, err
	}
	run.logger.Info("run complete",
		"reporters", run.stats.Reporters,
		"requests", run.stats.Requests,
		"success", run.stats.Success,
		"failed", run.stats.Failed,
		"skipped", run.stats.Skipped,
	)
	result.Stats = run.stats
	return result, nil
}

type runState struct {
	*Pipeline
	logger *slog.Logger
	stats  Stats
}

func (r *runState) hit(name string) {
	r.stats.CacheHits = append(r.stats.CacheHits, name)
	r.logger.Debug("cache hit", "name", name)
}

func (r *runState) computed(name string) {
	r.stats.Computed = append(r.stats.Computed, name)
	r.logger.Info("computed", "name", name)
}

func (r *runState) execute(ctx context.Context) (*Result, error) {
	dir, err := r.directory(ctx)
	if err != nil {
		return nil, err
	}
	r.stats.Reporters = dir.Len()

	result := &Result{Directory: dir}
	graphs := make(map[model.Flow]*graph.Graph, len(model.Flows))
	for _, flow := range model.Flows {
		g, ok, err := r.loadGraph(ctx, flow)
		if err != nil {
			return nil, err
		}
		if ok {
			graphs[flow] = g
		}
	}

	if len(graphs) < len(model.Flows) {
		table, err := r.table(ctx, dir)
		if err != nil {
			return nil, err
		}
		result.Table = table
		for _, flow := range model.Flows {
			if graphs[flow] != nil {
				continue
			}
			g := graph.Build(dir.Codes(), table, flow)
			if err := store.SaveJSON(ctx, r.store, r.names.graph(flow), g); err != nil {
				return nil, fmt.Errorf("saving %s graph: %w", flow, err)
			}
			r.computed(r.names.graph(flow))
			graphs[flow] = g
		}
	}

	result.Export = graphs[model.FlowExport]
	result.Import = graphs[model.FlowImport]
	return result, nil
}

func (r *runState) directory(ctx context.Context) (*model.Directory, error) {
	var reporters []model.Reporter
	ok, err := store.LoadJSON(ctx, r.store, r.names.Countries, &reporters)
	if err != nil {
		return nil, fmt.Errorf("loading reporters: %w", err)
	}
	if ok {
		r.hit(r.names.Countries)
		return model.NewDirectory(reporters), nil
	}

	reporters, err = r.provider.ListReporters(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reporters: %w", err)
	}
	reporters = filterReporters(reporters, r.opts.Allowlist)
	if r.opts.Limit > 0 && len(reporters) > r.opts.Limit {
		reporters = reporters[:r.opts.Limit]
	}
	if len(reporters) == 0 {
		return nil, errors.New("no reporters after filtering")
	}

	dir := model.NewDirectory(reporters)
	if err := store.SaveJSON(ctx, r.store, r.names.Countries, dir.Reporters()); err != nil {
		return nil, fmt.Errorf("saving reporters: %w", err)
	}
	r.computed(r.names.Countries)
	return dir, nil
}

func (r *runState) loadGraph(ctx context.Context, flow model.Flow) (*graph.Graph, bool, error) {
	name := r.names.graph(flow)
	g := graph.New(flow)
	ok, err := store.LoadJSON(ctx, r.store, name, g)
	if err != nil {
		return nil, false, fmt.Errorf("loading %s graph: %w", flow, err)
	}
	if ok {
		r.hit(name)
	}
	return g, ok, nil
}

func (r *runState) table(ctx context.Context, dir *model.Directory) (model.ShareTable, error) {
	var table model.ShareTable
	ok, err := store.LoadJSON(ctx, r.store, r.names.Table, &table)
	if err != nil {
		return nil, fmt.Errorf("loading share table: %w", err)
	}
	if ok {
		r.hit(r.names.Table)
		return table, nil
	}

	raw := make(map[model.Flow]normalize.Documents, len(model.Flows))
	for _, flow := range model.Flows {
		docs, err := r.documents(ctx, dir, flow)
		if err != nil {
			return nil, err
		}
		raw[flow] = docs
	}

	table, problems := normalize.Table(dir, raw)
	for _, problem := range problems {
		r.logger.Warn("discarding malformed document", "error", problem)
	}
	if err := store.SaveJSON(ctx, r.store, r.names.Table, table); err != nil {
		return nil, fmt.Errorf("saving share table: %w", err)
	}
	r.computed(r.names.Table)
	return table, nil
}

// documents loads or fetches the raw share document of every reporter for
// one flow. A failed fetch is recorded as a nil document and the batch goes
// on; only a quota error or cancellation stops it.
func (r *runState) documents(ctx context.Context, dir *model.Directory, flow model.Flow) (normalize.Documents, error) {
	name := r.names.data(flow)
	var docs normalize.Documents
	ok, err := store.LoadJSON(ctx, r.store, name, &docs)
	if err != nil {
		return nil, fmt.Errorf("loading %s documents: %w", flow, err)
	}
	if ok {
		r.hit(name)
		return docs, nil
	}

	docs = make(normalize.Documents, dir.Len())
	for _, code := range dir.Codes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.stats.Requests++
		doc, err := r.provider.FetchPartnerShares(ctx, code, flow, r.opts.Year)
		if err != nil {
			if errors.Is(err, comtrade.ErrQuotaExceeded) {
				return nil, err
			}
			docs[code] = nil
			if errors.Is(err, wits.ErrNoRecords) || errors.Is(err, comtrade.ErrNoRecords) {
				r.stats.Skipped++
				r.logger.Debug("no records", "reporter", code, "flow", flow)
				continue
			}
			r.stats.Failed++
			r.logger.Warn("fetch failed", "reporter", code, "flow", flow, "error", err)
			continue
		}
		r.stats.Success++
		docs[code] = doc
	}

	if err := store.SaveJSON(ctx, r.store, name, docs); err != nil {
		return nil, fmt.Errorf("saving %s documents: %w", flow, err)
	}
	r.computed(name)
	return docs, nil
}
