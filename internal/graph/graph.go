package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// BBox is [minx, miny, maxx, maxy].
type BBox [4]float64

func (b BBox) Union(other BBox) BBox {
	return BBox{
		min(b[0], other[0]),
		min(b[1], other[1]),
		max(b[2], other[2]),
		max(b[3], other[3]),
	}
}

// Graph is a precomputed spatial adjacency graph for one layer.
// Immutable once parsed, so concurrent readers need no locking.
type Graph struct {
	Layer  string
	adj    map[string][]string
	bboxes map[string]BBox
}

// artifact is the wire format of a serialized graph. Edges are pairs
// of node ids; bboxes are optional per-node [minx,miny,maxx,maxy].
type artifact struct {
	Layer  string          `json:"layer"`
	Nodes  []string        `json:"nodes"`
	Edges  [][2]string     `json:"edges"`
	BBoxes map[string]BBox `json:"bboxes,omitempty"`
}

// Parse decodes a serialized graph artifact. Edges referencing unknown
// nodes indicate a broken artifact build and fail the parse.
func Parse(raw []byte) (*Graph, error) {
	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode graph artifact: %w", err)
	}

	g := &Graph{
		Layer:  a.Layer,
		adj:    make(map[string][]string, len(a.Nodes)),
		bboxes: a.BBoxes,
	}
	for _, n := range a.Nodes {
		g.adj[n] = nil
	}
	for _, e := range a.Edges {
		if _, ok := g.adj[e[0]]; !ok {
			return nil, fmt.Errorf("graph artifact edge references unknown node %q", e[0])
		}
		if _, ok := g.adj[e[1]]; !ok {
			return nil, fmt.Errorf("graph artifact edge references unknown node %q", e[1])
		}
		g.adj[e[0]] = append(g.adj[e[0]], e[1])
		g.adj[e[1]] = append(g.adj[e[1]], e[0])
	}
	return g, nil
}

// Marshal serializes the graph back to the artifact format, with nodes
// and edges in deterministic order.
func (g *Graph) Marshal() ([]byte, error) {
	a := artifact{Layer: g.Layer, BBoxes: g.bboxes}
	for n := range g.adj {
		a.Nodes = append(a.Nodes, n)
	}
	sort.Strings(a.Nodes)
	seen := make(map[[2]string]struct{})
	for _, n := range a.Nodes {
		for _, m := range g.adj[n] {
			key := [2]string{n, m}
			if n > m {
				key = [2]string{m, n}
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			a.Edges = append(a.Edges, key)
		}
	}
	return json.Marshal(a)
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.adj[id]
	return ok
}

func (g *Graph) NumNodes() int {
	return len(g.adj)
}

// NodeBBox returns the bounding box recorded for a node, if any.
func (g *Graph) NodeBBox(id string) (BBox, bool) {
	b, ok := g.bboxes[id]
	return b, ok
}

// Components partitions the given geo_ids into connected components of
// the induced subgraph. Ids missing from the graph become singleton
// components: the check is informational and a stale artifact should
// degrade rather than fail.
func (g *Graph) Components(geoIDs []string) [][]string {
	member := make(map[string]struct{}, len(geoIDs))
	for _, id := range geoIDs {
		member[id] = struct{}{}
	}

	visited := make(map[string]struct{}, len(geoIDs))
	var components [][]string

	for _, start := range geoIDs {
		if _, ok := visited[start]; ok {
			continue
		}
		visited[start] = struct{}{}

		component := []string{start}
		stack := []string{start}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range g.adj[node] {
				if _, in := member[next]; !in {
					continue
				}
				if _, ok := visited[next]; ok {
					continue
				}
				visited[next] = struct{}{}
				component = append(component, next)
				stack = append(stack, next)
			}
		}
		components = append(components, component)
	}
	return components
}

// ComponentBBoxes returns one bounding box per connected component,
// the union of the member nodes' recorded boxes.
func (g *Graph) ComponentBBoxes(geoIDs []string) []BBox {
	components := g.Components(geoIDs)
	boxes := make([]BBox, 0, len(components))
	for _, component := range components {
		var box BBox
		first := true
		for _, id := range component {
			b, ok := g.NodeBBox(id)
			if !ok {
				continue
			}
			if first {
				box = b
				first = false
			} else {
				box = box.Union(b)
			}
		}
		boxes = append(boxes, box)
	}
	return boxes
}
