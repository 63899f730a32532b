package jobs

import (
	"context"

	"go.uber.org/zap"
)

// FeedPoller refreshes every external feed in one sequential pass.
type FeedPoller interface {
	PollAll(ctx context.Context) error
}

// PollFeedsJob runs the external data synchronizer.
type PollFeedsJob struct {
	poller FeedPoller
	logger *zap.Logger
}

// NewPollFeedsJob creates the job.
func NewPollFeedsJob(poller FeedPoller, logger *zap.Logger) *PollFeedsJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollFeedsJob{poller: poller, logger: logger.Named("poll_feeds")}
}

// Name returns the job name.
func (j *PollFeedsJob) Name() string { return "poll_feeds" }

// Description returns the job description.
func (j *PollFeedsJob) Description() string {
	return "Checks tracked market prices, lucky numbers and substitutions"
}

// Run polls all feeds. Failures of single feeds are already escalated by the
// synchronizer; the joined error only feeds the job metrics.
func (j *PollFeedsJob) Run(ctx context.Context) error {
	if err := j.poller.PollAll(ctx); err != nil {
		return err
	}
	j.logger.Debug("feeds polled")
	return nil
}
