package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/emsroute/ers/core/model"
)

// Seed is the JSON dataset loaded at startup: the road network plus the
// initial fleet and traffic state.
type Seed struct {
	Cities         []model.City          `json:"cities"`
	Nodes          []model.Node          `json:"nodes"`
	Edges          []model.Edge          `json:"edges"`
	Ambulances     []model.Ambulance     `json:"ambulances"`
	Roadblocks     []model.Roadblock     `json:"roadblocks"`
	TrafficUpdates []model.TrafficUpdate `json:"traffic_updates"`
}

// LoadSeed reads and decodes a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &s, nil
}

// Apply writes every seed record into the store. Ambulances with no
// status default to available.
func (s *Seed) Apply(m *Memory) error {
	nodes := make(map[model.NodeID]bool, len(s.Nodes))
	for _, c := range s.Cities {
		m.PutCity(c)
	}
	for _, n := range s.Nodes {
		nodes[n.ID] = true
		m.PutNode(n)
	}
	for _, e := range s.Edges {
		if !nodes[e.From] || !nodes[e.To] {
			return fmt.Errorf("edge %d references unknown node", e.ID)
		}
		m.PutEdge(e)
	}
	for _, a := range s.Ambulances {
		if a.Status == "" {
			a.Status = model.AmbulanceAvailable
		}
		m.PutAmbulance(a)
	}
	for _, r := range s.Roadblocks {
		m.PutRoadblock(r)
	}
	for _, t := range s.TrafficUpdates {
		m.PutTrafficUpdate(t)
	}
	return nil
}

// NewMemoryFromSeed loads a seed file into a fresh store.
func NewMemoryFromSeed(path string) (*Memory, error) {
	seed, err := LoadSeed(path)
	if err != nil {
		return nil, err
	}
	m := NewMemory()
	if err := seed.Apply(m); err != nil {
		return nil, err
	}
	return m, nil
}
