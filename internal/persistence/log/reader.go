package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// ReadTrace decodes every record of a trace file in order, calling fn for each.
// Reading stops at the first error fn returns.
func ReadTrace(path string, fn func(TraceRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	return decodeLines(dec, func(line []byte) error {
		var rec TraceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		return fn(rec)
	})
}

func decodeLines(r io.Reader, fn func([]byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

// TraceFiles lists the trace segments below runDir in write order.
func TraceFiles(runDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(runDir, "trace", "trace-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
