package usecase

import (
	"context"

	drepo "StockWatch/internal/domain/repository"
	"StockWatch/pkg/logger"
)

// Pruner trims a job's execution history down to the newest keep entries.
type Pruner struct {
	history drepo.RunHistory
	keep    int
	log     *logger.Logger
}

func NewPruner(history drepo.RunHistory, keep int, log *logger.Logger) *Pruner {
	return &Pruner{history: history, keep: keep, log: log}
}

// Prune deletes everything past the newest keep entries and returns how many
// it removed. Deletions are independent; one failure does not stop the rest.
func (p *Pruner) Prune(ctx context.Context, job string) (int, error) {
	entries, err := p.history.List(ctx, job)
	if err != nil {
		return 0, err
	}
	if len(entries) <= p.keep {
		return 0, nil
	}

	pruned := 0
	for _, e := range entries[p.keep:] {
		if err := p.history.Delete(ctx, e.ID); err != nil {
			p.log.Error("prune delete failed",
				logger.String("id", e.ID),
				logger.Error(err))
			continue
		}
		pruned++
	}

	p.log.Info("pruned execution history",
		logger.String("job", job),
		logger.Int("kept", p.keep),
		logger.Int("pruned", pruned))
	return pruned, nil
}
