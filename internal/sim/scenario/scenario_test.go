package scenario

import (
	"errors"
	"testing"

	"craftbots.ai/internal/sim/api"
	"craftbots.ai/internal/sim/world"
)

func TestLoad_BundledScenario(t *testing.T) {
	sc, err := Load("../../../configs/scenarios/two_sites.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := world.New(world.Config{})
	b, err := sc.Build(w)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(b.Nodes) != 5 || len(b.Actors) != 3 || len(b.Tasks) != 2 {
		t.Fatalf("built nodes=%d actors=%d tasks=%d", len(b.Nodes), len(b.Actors), len(b.Tasks))
	}
	needed := api.Ints(w, b.Tasks[0], api.FieldNeededResources)
	if needed[api.ColourRed] != 2 || needed[api.ColourOrange] != 2 || needed[api.ColourBlue] != 0 {
		t.Fatalf("task 0 needs %v", needed)
	}
	if n, _ := api.ID(w, b.Actors[2], api.FieldNode); n != b.Nodes["market"] {
		t.Fatalf("third actor at %d want market %d", n, b.Nodes["market"])
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing actors": `{"nodes":[{"id":"a"}],"tasks":[]}`,
		"bad colour":     `{"nodes":[{"id":"a"}],"actors":[{"node":"a"}],"tasks":[],"mines":[{"node":"a","colour":"purple"}]}`,
		"zero length":    `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"from":"a","to":"b","length":0}],"actors":[{"node":"a"}],"tasks":[]}`,
		"negative need":  `{"nodes":[{"id":"a"}],"actors":[{"node":"a"}],"tasks":[{"node":"a","needed":{"red":-1}}]}`,
		"unknown field":  `{"nodes":[{"id":"a"}],"actors":[{"node":"a"}],"tasks":[],"weather":"rain"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err=%v want ErrInvalid", err)
			}
		})
	}
}

func TestBuild_UnknownNode(t *testing.T) {
	sc, err := Parse([]byte(`{"nodes":[{"id":"a"}],"actors":[{"node":"b"}],"tasks":[]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := sc.Build(world.New(world.Config{})); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err=%v want ErrInvalid", err)
	}
}

func TestColourIndex(t *testing.T) {
	for name, want := range map[string]int{"red": 0, "Blue": 1, "ORANGE": 2, "black": 3, "green": 4} {
		if got := ColourIndex(name); got != want {
			t.Fatalf("ColourIndex(%q)=%d want %d", name, got, want)
		}
	}
}
