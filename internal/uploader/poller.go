package uploader

import (
	"context"
	"log/slog"
	"time"

	"github.com/motorscan/carhealth/internal/types/media"
)

// ValidationPoller periodically re-fetches the server-side
// required-media check for a car. It runs independently of in-flight
// uploads, so a poll may report an asset missing while its transfer is
// still underway; consumers must tolerate that transient gap.
type ValidationPoller struct {
	api      *Client
	interval time.Duration
}

func NewValidationPoller(api *Client, interval time.Duration) *ValidationPoller {
	return &ValidationPoller{api: api, interval: interval}
}

// Run polls until the context is done, invoking onResult with each
// successful fetch. Fetch errors are logged and the loop keeps going.
func (vp *ValidationPoller) Run(ctx context.Context, carID string, onResult func(media.ValidationResult)) {
	ticker := time.NewTicker(vp.interval)
	defer ticker.Stop()

	vp.poll(ctx, carID, onResult)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vp.poll(ctx, carID, onResult)
		}
	}
}

func (vp *ValidationPoller) poll(ctx context.Context, carID string, onResult func(media.ValidationResult)) {
	result, err := vp.api.ValidateMedia(ctx, carID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("media validation poll failed",
			slog.String("car_id", carID),
			slog.String("error", err.Error()))
		return
	}
	onResult(result)
}
