package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := writeFile(t, `
scheduler:
  parallel_tasks: 5
  stall_timeout_ticks: 40
  verbose: true
world:
  inventory_size: 4
  no_heavy_limit: true
run:
  tick_rate_hz: 20
`)
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ac := tune.AllocatorConfig()
	if ac.ParallelTasks != 5 || ac.StallTimeoutTicks != 40 || !ac.Verbose {
		t.Fatalf("scheduler config=%+v", ac)
	}
	if ac.InventorySize != 4 || !ac.IgnoreHeavy {
		t.Fatalf("shared rules not applied to scheduler: %+v", ac)
	}
	if ac.MaxStallRetries != 8 {
		t.Fatalf("unset max_stall_retries=%d want default 8", ac.MaxStallRetries)
	}
	wc := tune.WorldConfig("w1")
	if wc.InventorySize != 4 || !wc.NoHeavyLimit || wc.ID != "w1" {
		t.Fatalf("world config=%+v", wc)
	}
	if len(wc.MineEffort) != 5 || wc.MineEffort[3] != 30 {
		t.Fatalf("mine effort=%v", wc.MineEffort)
	}
	if tune.Run.TickRateHz != 20 {
		t.Fatalf("tick rate=%d", tune.Run.TickRateHz)
	}
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "scheduler: [",
		"colour range":   "world:\n  heavy_colour: 9\n",
		"effort length":  "world:\n  mine_effort: [1, 2]\n",
		"negative tasks": "scheduler:\n  parallel_tasks: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
