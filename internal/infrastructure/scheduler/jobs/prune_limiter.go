package jobs

import "context"

// Pruner drops state that is no longer needed.
type Pruner interface {
	Prune()
}

// PruneLimiterJob forgets command rate-limit buckets of idle users.
type PruneLimiterJob struct {
	limiter Pruner
}

// NewPruneLimiterJob creates the job.
func NewPruneLimiterJob(limiter Pruner) *PruneLimiterJob {
	return &PruneLimiterJob{limiter: limiter}
}

// Name returns the job name.
func (j *PruneLimiterJob) Name() string { return "prune_limiter" }

// Description returns the job description.
func (j *PruneLimiterJob) Description() string {
	return "Forgets rate-limit buckets of users who stopped sending commands"
}

// Run prunes the limiter.
func (j *PruneLimiterJob) Run(context.Context) error {
	j.limiter.Prune()
	return nil
}
