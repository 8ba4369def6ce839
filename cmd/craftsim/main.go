package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"craftbots.ai/internal/persistence/indexdb"
	persistlog "craftbots.ai/internal/persistence/log"
	"craftbots.ai/internal/persistence/snapshot"
	"craftbots.ai/internal/sched/allocator"
	"craftbots.ai/internal/sim/driver"
	"craftbots.ai/internal/sim/scenario"
	"craftbots.ai/internal/sim/tuning"
	"craftbots.ai/internal/sim/world"
	"craftbots.ai/internal/transport/observer"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configDir    = flag.String("configs", "./configs", "config directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		scenarioPath = flag.String("scenario", "", "path to scenario json (default: <configs>/scenarios/two_sites.json)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite index")
		addr         = flag.String("addr", "", "observer http listen address, e.g. 127.0.0.1:8081 (empty to disable)")
		tickRate     = flag.Int("tick_rate", -1, "ticks per second (overrides tuning; 0 runs unpaced)")
		maxTicks     = flag.Uint64("max_ticks", 0, "stop after this many ticks (overrides tuning)")
		verbose      = flag.Bool("v", false, "log actor narration")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[craftsim] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("load tuning: %v", err)
			return 1
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *tickRate >= 0 {
		tune.Run.TickRateHz = *tickRate
	}
	if *maxTicks > 0 {
		tune.Run.MaxTicks = *maxTicks
	}
	if *verbose {
		tune.Scheduler.Verbose = true
	}

	sp := strings.TrimSpace(*scenarioPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "scenarios", "two_sites.json")
	}
	sc, err := scenario.Load(sp)
	if err != nil {
		logger.Printf("load scenario: %v", err)
		return 1
	}
	scName := sc.Name
	if scName == "" {
		scName = strings.TrimSuffix(filepath.Base(sp), filepath.Ext(sp))
	}

	w := world.New(tune.WorldConfig(scName))
	built, err := sc.Build(w)
	if err != nil {
		logger.Printf("build scenario: %v", err)
		return 1
	}
	logger.Printf("scenario=%s nodes=%d actors=%d tasks=%d", scName, len(built.Nodes), len(built.Actors), len(built.Tasks))

	alloc := allocator.New(w, tune.AllocatorConfig(), logger)
	d := driver.New(driver.Config{TickRateHz: tune.Run.TickRateHz, MaxTicks: tune.Run.MaxTicks}, w, alloc, logger)
	runID := d.RunID()
	runDir := filepath.Join(*dataDir, "runs", runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		logger.Printf("run dir: %v", err)
		return 1
	}
	logger.Printf("run=%s dir=%s", runID, runDir)

	trace := persistlog.NewTickLogger(runDir, runID)
	defer trace.Close()
	alloc.AddSink(trace)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "craftsim.sqlite"), runID)
		if err != nil {
			logger.Printf("open index: %v", err)
			return 1
		}
		defer idx.Close()
		if err := idx.RecordRun(scName, tune); err != nil {
			logger.Printf("index: record run: %v", err)
		}
		alloc.AddSink(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if a := strings.TrimSpace(*addr); a != "" {
		obs := observer.NewServer(runID, logger)
		alloc.AddSink(obs)
		srv := startObserver(a, obs, logger)
		defer func() {
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
	}

	started := time.Now().UTC()
	runErr := d.Run(ctx)
	reason := "done"
	switch {
	case runErr == nil:
	case errors.Is(runErr, driver.ErrTickLimit):
		reason = "tick_limit"
		logger.Printf("run %s: stopped at tick limit %d with tasks unfinished", runID, d.Cycles())
	case errors.Is(runErr, context.Canceled):
		reason = "interrupted"
		logger.Printf("run %s: interrupted at tick %d", runID, d.Cycles())
	default:
		reason = "error"
		logger.Printf("run %s: %v", runID, runErr)
	}

	snap := snapshot.Capture(runID, d.Cycles(), reason, alloc, built.Actors)
	snapPath := filepath.Join(runDir, "snapshots", fmt.Sprintf("%d.snap.zst", d.Cycles()))
	if err := snapshot.WriteSnapshot(snapPath, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
	}

	stats := alloc.Stats()
	summary := persistlog.RunSummary{
		RunID:    runID,
		Scenario: scName,
		Ticks:    d.Cycles(),
		Done:     d.Done(),
		Started:  started,
		Finished: time.Now().UTC(),
		Stats:    stats,
		World:    w.Stats(),
	}
	sl := persistlog.NewSummaryLogger(runDir)
	if err := sl.WriteSummary(summary); err != nil {
		logger.Printf("summary: %v", err)
	}
	_ = sl.Close()
	if idx != nil {
		if err := idx.RecordSummary(summary.Ticks, summary.Done, stats); err != nil {
			logger.Printf("index: record summary: %v", err)
		}
		if st := idx.Stats(); st.DropTickTotal > 0 {
			logger.Printf("index: dropped %d tick rows", st.DropTickTotal)
		}
	}

	logger.Printf("done=%v ticks=%d tasks=%d/%d goals=%d completed=%d abandoned=%d stalls=%d no_route=%d contention=%d",
		summary.Done, summary.Ticks, stats.TasksFinished, len(built.Tasks), stats.GoalsIssued, stats.GoalsCompleted,
		stats.GoalsAbandoned, stats.Stalls, stats.NoRoute, stats.ContentionMiss)
	if !summary.Done {
		return 1
	}
	return 0
}

func startObserver(addr string, obs *observer.Server, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obs.WSHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("observer listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("observer: %v", err)
		}
	}()
	return srv
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
