package geostore

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BulkError records one record that failed during a bulk load.
type BulkError struct {
	Kind string // "node" or "path"
	ID   int64
	Err  error
}

func (e BulkError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Kind, e.ID, e.Err)
}

func (e BulkError) Unwrap() error { return e.Err }

// BulkResult summarizes a bulk load.
type BulkResult struct {
	Loaded int
	Errors []BulkError
}

// BulkLoad writes nodes and paths concurrently, best-effort: a record that
// fails validation or encoding is reported in the result without aborting
// the rest. Only context cancellation stops the load early.
//
// Nodes load before paths, so a subsequent VerifyIntegrity sees complete
// data.
func (g *Geostore) BulkLoad(ctx context.Context, nodes []NodeRecord, paths []PathRecord) (*BulkResult, error) {
	var (
		mu     sync.Mutex
		result BulkResult
	)
	fail := func(kind string, id int64, err error) {
		mu.Lock()
		result.Errors = append(result.Errors, BulkError{Kind: kind, ID: id, Err: err})
		mu.Unlock()
	}

	limit := runtime.GOMAXPROCS(0)
	if g.bulkLimit > 0 {
		limit = g.bulkLimit
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(limit)
	for _, rec := range nodes {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := g.upsertNode(rec); err != nil {
				fail("node", rec.ID, err)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	grp, ctx = errgroup.WithContext(ctx)
	grp.SetLimit(limit)
	for _, rec := range paths {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := g.upsertPath(rec); err != nil {
				fail("path", rec.ID, err)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	result.Loaded = len(nodes) + len(paths) - len(result.Errors)
	g.logger.LogBulkLoad(ctx, len(nodes)+len(paths), len(result.Errors))
	return &result, nil
}
