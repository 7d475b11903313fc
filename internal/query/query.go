// Package query answers read-only questions over the export and import
// share graphs: name and code lookup, partner lists, bilateral comparison
// and top-k partner rankings.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"tradeshare/internal/graph"
	"tradeshare/internal/model"
)

// DefaultTop is the number of partners shown in rankings and distributions.
const DefaultTop = 5

// OtherPartner labels the remainder slice of a distribution.
const OtherPartner = "Other"

var (
	ErrNotFound    = errors.New("not found")
	ErrMissingEdge = errors.New("no share recorded")
)

// MissingEdgeError reports a bilateral share that was never recorded. A
// recorded zero is a value, not a missing edge.
type MissingEdgeError struct {
	Flow model.Flow
	From string
	To   string
}

func (e *MissingEdgeError) Error() string {
	return fmt.Sprintf("no %s share recorded from %s to %s", e.Flow, e.From, e.To)
}

func (e *MissingEdgeError) Is(target error) bool {
	return target == ErrMissingEdge
}

type Match struct {
	Code string
	Name string
	// ByName is set when the token matched a country name.
	ByName bool
}

type Share struct {
	Partner string  `json:"partner"`
	Name    string  `json:"name"`
	Weight  float64 `json:"share"`
}

// Bilateral holds the four directed shares between two reporters, each in
// percent of the first-named reporter's trade in that flow.
type Bilateral struct {
	A             model.Reporter
	B             model.Reporter
	AExportsToB   float64
	AImportsFromB float64
	BExportsToA   float64
	BImportsFromA float64
}

type Engine struct {
	dir    *model.Directory
	graphs map[model.Flow]*graph.Graph
}

func New(dir *model.Directory, exports, imports *graph.Graph) *Engine {
	return &Engine{
		dir: dir,
		graphs: map[model.Flow]*graph.Graph{
			model.FlowExport: exports,
			model.FlowImport: imports,
		},
	}
}

func (e *Engine) Directory() *model.Directory {
	return e.dir
}

func (e *Engine) Graph(flow model.Flow) *graph.Graph {
	return e.graphs[flow]
}

// Lookup maps a code to its name or a name to its code. Codes are tried
// first.
func (e *Engine) Lookup(token string) (Match, error) {
	token = strings.TrimSpace(token)
	if name, ok := e.dir.Name(token); ok {
		return Match{Code: model.NormalizeCode(token), Name: name}, nil
	}
	if code, ok := e.dir.Code(token); ok {
		name, _ := e.dir.Name(code)
		return Match{Code: code, Name: name, ByName: true}, nil
	}
	return Match{}, fmt.Errorf("%w: %q", ErrNotFound, token)
}

// ResolveCode accepts either a reporter code or a reporter name.
func (e *Engine) ResolveCode(token string) (string, error) {
	match, err := e.Lookup(token)
	if err != nil {
		return "", err
	}
	return match.Code, nil
}

func (e *Engine) reporter(code string) model.Reporter {
	name, _ := e.dir.Name(code)
	return model.Reporter{ISO3: code, Name: name}
}

func (e *Engine) successors(code string, flow model.Flow) ([]graph.Edge, error) {
	g, ok := e.graphs[flow]
	if !ok || g == nil {
		return nil, fmt.Errorf("unknown flow: %s", flow)
	}
	edges, err := g.Successors(code)
	if errors.Is(err, graph.ErrNodeNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, code)
	}
	return edges, err
}

// Partners lists the recorded partners of a reporter in graph order.
func (e *Engine) Partners(token string, flow model.Flow) ([]model.Reporter, error) {
	code, err := e.ResolveCode(token)
	if err != nil {
		return nil, err
	}
	edges, err := e.successors(code, flow)
	if err != nil {
		return nil, err
	}

	partners := make([]model.Reporter, 0, len(edges))
	for _, edge := range edges {
		if !e.dir.Has(edge.To) {
			continue
		}
		partners = append(partners, e.reporter(edge.To))
	}
	return partners, nil
}

// Compare returns the four directed shares between a and b. Any share that
// was never recorded fails the comparison with a *MissingEdgeError.
func (e *Engine) Compare(a, b string) (Bilateral, error) {
	codeA, err := e.ResolveCode(a)
	if err != nil {
		return Bilateral{}, err
	}
	codeB, err := e.ResolveCode(b)
	if err != nil {
		return Bilateral{}, err
	}

	result := Bilateral{A: e.reporter(codeA), B: e.reporter(codeB)}
	lookups := []struct {
		flow     model.Flow
		from, to string
		dst      *float64
	}{
		{model.FlowExport, codeA, codeB, &result.AExportsToB},
		{model.FlowImport, codeA, codeB, &result.AImportsFromB},
		{model.FlowExport, codeB, codeA, &result.BExportsToA},
		{model.FlowImport, codeB, codeA, &result.BImportsFromA},
	}
	for _, lookup := range lookups {
		g := e.graphs[lookup.flow]
		weight, ok := g.Weight(lookup.from, lookup.to)
		if !ok {
			return Bilateral{}, &MissingEdgeError{Flow: lookup.flow, From: lookup.from, To: lookup.to}
		}
		*lookup.dst = weight
	}
	return result, nil
}

// TopK ranks partners by share, highest first; equal shares are ordered by
// partner code. Fewer than k entries come back when there are fewer
// partners.
func (e *Engine) TopK(token string, flow model.Flow, k int) ([]Share, error) {
	code, err := e.ResolveCode(token)
	if err != nil {
		return nil, err
	}
	edges, err := e.successors(code, flow)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Share{}, nil
	}

	shares := make([]Share, 0, len(edges))
	for _, edge := range edges {
		if !e.dir.Has(edge.To) {
			continue
		}
		name, _ := e.dir.Name(edge.To)
		shares = append(shares, Share{Partner: edge.To, Name: name, Weight: edge.Weight})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Weight != shares[j].Weight {
			return shares[i].Weight > shares[j].Weight
		}
		return shares[i].Partner < shares[j].Partner
	})

	if k > len(shares) {
		k = len(shares)
	}
	return shares[:k], nil
}

// Distribution is TopK followed by an Other slice of 100 minus the listed
// shares. The remainder is not clamped, so inconsistent source data shows
// up as a negative Other.
func (e *Engine) Distribution(token string, flow model.Flow, k int) ([]Share, error) {
	top, err := e.TopK(token, flow, k)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, share := range top {
		sum += share.Weight
	}
	return append(top, Share{Partner: OtherPartner, Name: OtherPartner, Weight: 100 - sum}), nil
}
