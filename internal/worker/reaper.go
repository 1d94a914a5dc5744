package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
)

// DeliveryReaper removes expired export packages and their download records.
type DeliveryReaper struct {
	delivery *export.DeliveryManager
	logger   zerolog.Logger
}

// NewDeliveryReaper creates a new reaper.
func NewDeliveryReaper(delivery *export.DeliveryManager, logger zerolog.Logger) *DeliveryReaper {
	return &DeliveryReaper{delivery: delivery, logger: logger}
}

// Run deletes every expired delivery. Safe to re-run at any frequency.
func (r *DeliveryReaper) Run(ctx context.Context) (int, error) {
	removed, err := r.delivery.Reap(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("delivery reap failed")
		return 0, err
	}
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("expired export packages reaped")
	}
	return removed, nil
}
