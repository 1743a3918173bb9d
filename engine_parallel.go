package taproot

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// buildParallel runs the per-file pipeline on a worker pool:
//
//	Phase A (serial):  enumeration and duplicate detection (the caller).
//	Phase B (parallel): read, hash, parse, resolve per file.
//	Phase C (serial):  fold results into the map (the caller's merge).
//
// Workers share nothing but the resolver's lookup cache; each file's state
// is owned by exactly one goroutine, and each ParseImports call has its own
// tree-sitter parser.
func (e *Engine) buildParallel(ctx context.Context, paths []string, res *resolver) ([]fileResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, len(paths))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan string, len(paths))
	for _, path := range paths {
		workCh <- path
	}
	close(workCh)

	type result struct {
		path string
		fr   fileResult
		err  error
	}
	resultCh := make(chan result, len(paths))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range workCh {
				fr, err := e.processFile(ctx, path, res)
				resultCh <- result{path: path, fr: fr, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]fileResult, 0, len(paths))
	var errs []error
	for r := range resultCh {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", r.path, r.err))
			continue
		}
		results = append(results, r.fr)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return results, nil
}
