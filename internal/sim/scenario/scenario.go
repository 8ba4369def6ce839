// Package scenario loads world layouts from JSON documents. Documents are
// validated against an embedded JSON Schema before anything is built.
package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"craftbots.ai/internal/sim/api"
	"craftbots.ai/internal/sim/world"
)

var ErrInvalid = errors.New("scenario: invalid")

//go:embed scenario.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("scenario.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

type Scenario struct {
	Name      string     `json:"name"`
	Nodes     []Node     `json:"nodes"`
	Edges     []Edge     `json:"edges"`
	Mines     []Mine     `json:"mines"`
	Resources []Resource `json:"resources"`
	Actors    []Actor    `json:"actors"`
	Tasks     []Task     `json:"tasks"`
}

type Node struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Length float64 `json:"length"`
}

type Mine struct {
	Node   string `json:"node"`
	Colour string `json:"colour"`
}

type Resource struct {
	Node   string `json:"node"`
	Colour string `json:"colour"`
	Count  int    `json:"count"`
}

type Actor struct {
	Node  string `json:"node"`
	Count int    `json:"count"`
}

type Task struct {
	Node   string         `json:"node"`
	Needed map[string]int `json:"needed"`
}

func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	sc, err := Parse(raw)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse validates raw against the scenario schema and decodes it.
func Parse(raw []byte) (Scenario, error) {
	s, err := compiled()
	if err != nil {
		return Scenario{}, fmt.Errorf("compile scenario schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Scenario{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(doc); err != nil {
		return Scenario{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var sc Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return sc, nil
}

// Built maps scenario node names to the ids the world gave them.
type Built struct {
	Nodes  map[string]api.EntityID
	Actors []api.EntityID
	Tasks  []api.EntityID
}

// Build adds the scenario's entities to w. Unknown node references are reported
// as ErrInvalid.
func (sc Scenario) Build(w *world.World) (Built, error) {
	b := Built{Nodes: map[string]api.EntityID{}}
	for _, n := range sc.Nodes {
		if _, dup := b.Nodes[n.ID]; dup {
			return b, fmt.Errorf("%w: duplicate node %q", ErrInvalid, n.ID)
		}
		b.Nodes[n.ID] = w.AddNode(n.X, n.Y)
	}
	node := func(what, ref string) (api.EntityID, error) {
		id, ok := b.Nodes[ref]
		if !ok {
			return api.NoEntity, fmt.Errorf("%w: %s references unknown node %q", ErrInvalid, what, ref)
		}
		return id, nil
	}

	for i, e := range sc.Edges {
		from, err := node(fmt.Sprintf("edge %d", i), e.From)
		if err != nil {
			return b, err
		}
		to, err := node(fmt.Sprintf("edge %d", i), e.To)
		if err != nil {
			return b, err
		}
		if _, err := w.AddEdge(from, to, e.Length); err != nil {
			return b, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	for i, m := range sc.Mines {
		n, err := node(fmt.Sprintf("mine %d", i), m.Node)
		if err != nil {
			return b, err
		}
		if _, err := w.AddMine(n, ColourIndex(m.Colour)); err != nil {
			return b, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	for i, r := range sc.Resources {
		n, err := node(fmt.Sprintf("resource %d", i), r.Node)
		if err != nil {
			return b, err
		}
		for k := 0; k < max(r.Count, 1); k++ {
			if _, err := w.AddResource(n, ColourIndex(r.Colour)); err != nil {
				return b, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
	}
	for i, a := range sc.Actors {
		n, err := node(fmt.Sprintf("actor %d", i), a.Node)
		if err != nil {
			return b, err
		}
		for k := 0; k < max(a.Count, 1); k++ {
			id, err := w.AddActor(n)
			if err != nil {
				return b, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			b.Actors = append(b.Actors, id)
		}
	}
	for i, t := range sc.Tasks {
		n, err := node(fmt.Sprintf("task %d", i), t.Node)
		if err != nil {
			return b, err
		}
		needed := make([]int, api.NumColours)
		for name, count := range t.Needed {
			needed[ColourIndex(name)] = count
		}
		id, err := w.AddTask(n, needed)
		if err != nil {
			return b, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		b.Tasks = append(b.Tasks, id)
	}
	return b, nil
}

// ColourIndex maps a colour name to its index; unknown names map to red.
func ColourIndex(name string) int {
	for c := 0; c < api.NumColours; c++ {
		if strings.EqualFold(api.ColourName(c), name) {
			return c
		}
	}
	return api.ColourRed
}
