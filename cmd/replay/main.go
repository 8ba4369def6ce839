package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	persistlog "craftbots.ai/internal/persistence/log"
	"craftbots.ai/internal/persistence/snapshot"
)

func main() {
	var (
		runDir   = flag.String("run", "", "run directory containing trace/trace-*.jsonl.zst")
		fromTick = flag.Uint64("from_tick", 0, "first tick to report (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to report (inclusive, optional)")
		actor    = flag.Int("actor", 0, "print the event lines of this actor")
		snapPath = flag.String("snapshot", "", "path to a scheduler .snap.zst to print (optional)")
	)
	flag.Parse()

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printSnapshot(snap)
		if *runDir == "" {
			return
		}
	}
	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	files, err := persistlog.TraceFiles(*runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list trace:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no trace files found in", *runDir)
		os.Exit(1)
	}

	opts := scanOptions{From: *fromTick, To: *toTick, Actor: *actor}
	if *actor != 0 {
		opts.OnEvent = func(line string) { fmt.Println(line) }
	}
	rep, err := scan(files, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	printReport(rep)
}

func printReport(rep report) {
	fmt.Printf("run=%s ticks=%d..%d entries=%d\n", rep.RunID, rep.FirstTick, rep.LastTick, rep.Entries)

	types := make([]string, 0, len(rep.ByType))
	for t := range rep.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-16s %d\n", t, rep.ByType[t])
	}

	actors := make([]int, 0, len(rep.Commands))
	for a := range rep.Commands {
		actors = append(actors, a)
	}
	sort.Ints(actors)
	for _, a := range actors {
		fmt.Printf("  actor %-4d commands=%d stalls=%d\n", a, rep.Commands[a], rep.Stalls[a])
	}

	st := rep.Final
	fmt.Printf("final: tasks=%d/%d reissued=%d goals=%d completed=%d abandoned=%d no_route=%d contention=%d sink_errors=%d\n",
		st.TasksFinished, st.TasksClaimed, st.TasksReissued, st.GoalsIssued, st.GoalsCompleted, st.GoalsAbandoned,
		st.NoRoute, st.ContentionMiss, st.SinkErrors)
}

func printSnapshot(snap snapshot.SchedulerV1) {
	h := snap.Header
	fmt.Printf("snapshot v%d run=%s tick=%d reason=%s reservations=%d mines=%d actors=%d\n",
		h.Version, h.RunID, h.Tick, h.Reason, len(snap.Reservations), len(snap.Mines), len(snap.Actors))
	for _, m := range snap.Mines {
		fmt.Printf("  mine %-4d node=%d colour=%d actors=%v quotas=%v\n", m.Mine, m.Node, m.Colour, m.Actors, m.Quotas)
	}
	for _, a := range snap.Actors {
		cur := "-"
		if a.Current != nil {
			cur = fmt.Sprintf("%s#%d(task=%d retries=%d)", a.Current.Kind, a.Current.ID, a.Current.Task, a.Current.Retries)
		}
		fmt.Printf("  actor %-4d current=%s queued=%d plan=%d watching=%d\n", a.ID, cur, len(a.Queue), a.PlanLen, a.Watching)
	}
}
