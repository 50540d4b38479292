// Package engine drives the analyzer over many files: it walks directory
// trees for PDFs and scans them concurrently under a bounded worker pool.
// Each per-file scan is self-contained, so the pool shares nothing but the
// analyzer itself.
package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Rasmus-Riis/PDFRecon/internal/forensic"
)

// Engine fans per-file scans out across a semaphore-bounded pool.
type Engine struct {
	analyzer *forensic.Analyzer
	sem      *semaphore.Weighted
}

// New returns an engine running at most concurrency scans at once.
func New(analyzer *forensic.Analyzer, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		analyzer: analyzer,
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

// FindPDFs walks root and returns every *.pdf file path, sorted. A plain
// file argument is returned as-is.
func FindPDFs(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ScanAll scans every path concurrently and returns the reports ordered by
// path. Cancellation stops admission of new files; reports for files already
// scanned are returned along with ctx's error.
func (e *Engine) ScanAll(ctx context.Context, paths []string) ([]*forensic.FileReport, error) {
	reports := make([]*forensic.FileReport, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer e.sem.Release(1)
			report, err := e.analyzer.Scan(ctx, path)
			if err != nil {
				return // cancelled mid-scan; the slot stays nil
			}
			reports[i] = report
		}(i, path)
	}
	wg.Wait()

	out := make([]*forensic.FileReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, ctx.Err()
}
