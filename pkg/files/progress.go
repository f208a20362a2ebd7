package files

import (
	"context"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
)

// Compute returns the progress after processed of total items. ok is false
// when total is not positive.
func Compute(processed, total int, name string) (models.Progress, bool) {
	if total <= 0 {
		return models.Progress{}, false
	}
	return models.Progress{
		Name:    name,
		Percent: float64(processed) * 100 / float64(total),
	}, true
}

// report stores the progress in the session and redraws it. Redraw failures
// are logged only: a stale progress bar must not abort the batch.
func (svc *Service) report(ctx context.Context, s *Session, processed, total int, name string) {
	p, ok := Compute(processed, total, name)
	if !ok {
		return
	}
	s.Progress = p
	if err := svc.messenger.Progress(ctx, s, p); err != nil {
		svc.log(s).WithError(err).Warn("Failed to update progress")
	}
}
