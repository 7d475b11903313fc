// Package graph holds the directed, weighted partner-share graphs.
//
// A graph carries one flow. Nodes are reporter codes; an edge A -> B with
// weight w means B accounts for w percent of A's trade in that flow. Nodes
// and each node's outgoing edges keep insertion order, which is also the
// order of the node-link JSON form.
//
// Graphs are built once by Build or decoded from JSON and are read-only
// afterwards, so concurrent readers need no locking.
package graph

import (
	"errors"
	"fmt"

	"tradeshare/internal/model"
)

var (
	// ErrNodeNotFound is returned when an edge references a node that was
	// never added.
	ErrNodeNotFound = errors.New("graph: node not found")

	ErrDuplicateNode = errors.New("graph: duplicate node")
)

type Edge struct {
	From   string
	To     string
	Weight float64
}

type Graph struct {
	flow  model.Flow
	nodes []string
	out   map[string][]Edge
	edges int
}

func New(flow model.Flow) *Graph {
	return &Graph{
		flow: flow,
		out:  make(map[string][]Edge),
	}
}

// Build creates every node in codes order, then one edge per recorded
// partner share. Partners are visited in codes order so the adjacency order
// does not depend on map iteration.
func Build(codes []string, table model.ShareTable, flow model.Flow) *Graph {
	g := New(flow)
	for _, code := range codes {
		_ = g.AddNode(code)
	}
	for _, reporter := range codes {
		shares, ok := table.Shares(reporter, flow)
		if !ok {
			continue
		}
		for _, partner := range codes {
			weight, ok := shares[partner]
			if !ok {
				continue
			}
			_ = g.AddEdge(reporter, partner, weight)
		}
	}
	return g
}

func (g *Graph) Flow() model.Flow {
	return g.flow
}

func (g *Graph) AddNode(id string) error {
	if g.HasNode(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	g.nodes = append(g.nodes, id)
	g.out[id] = nil
	return nil
}

// AddEdge adds from -> to, replacing the weight of an existing edge in place.
func (g *Graph) AddEdge(from, to string, weight float64) error {
	if !g.HasNode(from) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	edges := g.out[from]
	for i := range edges {
		if edges[i].To == to {
			edges[i].Weight = weight
			return nil
		}
	}
	g.out[from] = append(edges, Edge{From: from, To: to, Weight: weight})
	g.edges++
	return nil
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.out[id]
	return ok
}

// Nodes returns node ids in insertion order.
func (g *Graph) Nodes() []string {
	nodes := make([]string, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	return g.edges
}

// Successors returns the outgoing edges of id in insertion order.
func (g *Graph) Successors(id string) ([]Edge, error) {
	edges, ok := g.out[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	copied := make([]Edge, len(edges))
	copy(copied, edges)
	return copied, nil
}

// Weight returns the weight of from -> to and whether that edge exists.
func (g *Graph) Weight(from, to string) (float64, bool) {
	for _, edge := range g.out[from] {
		if edge.To == to {
			return edge.Weight, true
		}
	}
	return 0, false
}
