package graph

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MarshalText lets NodeID serialize as a plain UUID string, including as a
// JSON object key.
func (n NodeID) MarshalText() ([]byte, error) {
	return uuid.UUID(n).MarshalText()
}

// UnmarshalText parses a NodeID from a UUID string.
func (n *NodeID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*n = NodeID(u)
	return nil
}

// MarshalText lets EdgeID serialize as a plain UUID string, including as a
// JSON object key.
func (e EdgeID) MarshalText() ([]byte, error) {
	return uuid.UUID(e).MarshalText()
}

// UnmarshalText parses an EdgeID from a UUID string.
func (e *EdgeID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*e = EdgeID(u)
	return nil
}

type serialPort struct {
	InCapacity  int `json:"inCapacity"`
	OutCapacity int `json:"outCapacity"`
}

type serialEdge struct {
	ID EdgeID `json:"id"`
	A  Site   `json:"a"`
	B  Site   `json:"b"`
}

type serialGraph struct {
	Nodes map[NodeID]serialPort `json:"nodes"`
	Edges []serialEdge          `json:"edges"`
}

// MarshalJSON implements json.Marshaler by shadowing Graph's private
// fields through serialGraph.
func (g *Graph) MarshalJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := serialGraph{Nodes: make(map[NodeID]serialPort, len(g.nodes))}
	for id, nd := range g.nodes {
		s.Nodes[id] = serialPort{InCapacity: len(nd.incoming), OutCapacity: len(nd.outgoing)}
	}
	for id, ed := range g.edges {
		s.Edges = append(s.Edges, serialEdge{ID: id, A: ed.a, B: ed.b})
	}
	return json.Marshal(s)
}

// UnmarshalJSON rebuilds a Graph from its serialGraph shadow, preserving
// node and edge identities exactly.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var s serialGraph
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[NodeID]*nodeData, len(s.Nodes))
	g.edges = make(map[EdgeID]*edgeData, len(s.Edges))
	for id, p := range s.Nodes {
		g.nodes[id] = &nodeData{
			id:       id,
			incoming: make([]EdgeID, p.InCapacity),
			outgoing: make([]EdgeID, p.OutCapacity),
		}
	}
	for _, e := range s.Edges {
		g.edges[e.ID] = &edgeData{id: e.ID, a: e.A, b: e.B}
		if nd, ok := g.nodes[e.A.Node]; ok {
			nd.setPort(e.A.Port.Direction, e.A.Port.Index, e.ID)
		}
		if nd, ok := g.nodes[e.B.Node]; ok {
			nd.setPort(e.B.Port.Direction, e.B.Port.Index, e.ID)
		}
	}
	return nil
}
