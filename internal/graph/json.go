package graph

import (
	"encoding/json"
	"fmt"

	"tradeshare/internal/model"
)

type nodeLinkDocument struct {
	Directed bool           `json:"directed"`
	Flow     model.Flow     `json:"flow"`
	Nodes    []nodeLinkNode `json:"nodes"`
	Links    []nodeLinkLink `json:"links"`
}

type nodeLinkNode struct {
	ID string `json:"id"`
}

type nodeLinkLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// MarshalJSON writes the node-link form: nodes in insertion order, then
// links grouped by source in adjacency order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	doc := nodeLinkDocument{
		Directed: true,
		Flow:     g.flow,
		Nodes:    make([]nodeLinkNode, 0, len(g.nodes)),
		Links:    make([]nodeLinkLink, 0, g.edges),
	}
	for _, id := range g.nodes {
		doc.Nodes = append(doc.Nodes, nodeLinkNode{ID: id})
	}
	for _, id := range g.nodes {
		for _, edge := range g.out[id] {
			doc.Links = append(doc.Links, nodeLinkLink{Source: edge.From, Target: edge.To, Weight: edge.Weight})
		}
	}
	return json.Marshal(doc)
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc nodeLinkDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if !doc.Directed {
		return fmt.Errorf("graph: expected a directed graph")
	}

	decoded := New(doc.Flow)
	for _, node := range doc.Nodes {
		if err := decoded.AddNode(node.ID); err != nil {
			return err
		}
	}
	for _, link := range doc.Links {
		if err := decoded.AddEdge(link.Source, link.Target, link.Weight); err != nil {
			return err
		}
	}
	*g = *decoded
	return nil
}
