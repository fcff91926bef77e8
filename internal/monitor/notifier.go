package monitor

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
)

// LogNotifier reports risk changes to the log only. It is used when no
// message broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) RiskDataChanged(_ context.Context, result domain.CycleResult, changes []domain.RiskChange) error {
	for _, c := range changes {
		n.Logger.Info("risk data changed",
			"cycle_id", result.CycleID,
			"area_id", c.AreaID,
			"from", c.From,
			"to", c.To.Level,
			"score", c.To.Score,
		)
	}
	return nil
}
