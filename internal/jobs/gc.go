package jobs

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ValueLogGCer is satisfied by the embedded vector store.
type ValueLogGCer interface {
	RunGC() error
}

// GCProcessor reclaims value-log space in the embedded store. Badger only
// rewrites a log file when enough of it is stale, so most runs are no-ops.
type GCProcessor struct {
	store ValueLogGCer
}

func NewGCProcessor(store ValueLogGCer) *GCProcessor {
	return &GCProcessor{store: store}
}

func (p *GCProcessor) ProcessJobs(ctx context.Context) error {
	err := p.store.RunGC()
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}
