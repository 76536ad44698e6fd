package payouts

import (
	"context"
	"fmt"
)

// Job adapts the payout sweep to the cron worker.
type Job struct {
	svc Service
}

// NewJob wraps the payout service in a cron job.
func NewJob(svc Service) (*Job, error) {
	if svc == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &Job{svc: svc}, nil
}

func (j *Job) Name() string { return "vendor-payouts" }

func (j *Job) Run(ctx context.Context) error {
	return j.svc.RunPayouts(ctx)
}
