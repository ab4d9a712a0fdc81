package scheduler

import (
	"github.com/rs/zerolog"
)

// CachePruner removes expired entries from a cache store.
type CachePruner interface {
	PruneCache() (int64, error)
}

// CachePruneJob periodically evicts stale market data cache rows so the
// database does not grow unbounded.
type CachePruneJob struct {
	pruner CachePruner
	log    zerolog.Logger
}

// NewCachePruneJob creates the prune job.
func NewCachePruneJob(pruner CachePruner, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{
		pruner: pruner,
		log:    log.With().Str("job", "cache_prune").Logger(),
	}
}

// Name implements Job.
func (j *CachePruneJob) Name() string {
	return "cache_prune"
}

// Run implements Job.
func (j *CachePruneJob) Run() error {
	removed, err := j.pruner.PruneCache()
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Pruned expired cache entries")
	}
	return nil
}
