package share

import (
	"context"
	"time"
)

// StatResult is a single point-in-time snapshot of a share entry, as
// returned by Gateway.Stat.
type StatResult struct {
	Size       int64
	ModTime    time.Time
	ChangeTime time.Time
}

func (s StatResult) newer() time.Time {
	if s.ModTime.After(s.ChangeTime) {
		return s.ModTime
	}
	return s.ChangeTime
}

func (s StatResult) equal(other StatResult) bool {
	return s.Size == other.Size && s.ModTime.Equal(other.ModTime) && s.ChangeTime.Equal(other.ChangeTime)
}

// StabilityPolicy holds exactly one of two active modes, selected by which
// fields are populated.
type StabilityPolicy struct {
	MinAge         time.Duration // minimum-age mode when non-zero
	CheckCount     int           // samples in multi-sample mode (used when MinAge is zero); below 2 is raised to 2
	CheckInterval  time.Duration
	now            func() time.Time
}

// MinAgeMode reports whether the policy is configured for minimum-age mode.
// Minimum-age mode takes precedence when both are configured.
func (p StabilityPolicy) MinAgeMode() bool {
	return p.MinAge > 0
}

// clock returns the policy's now func, defaulting to time.Now.
func (p StabilityPolicy) clock() func() time.Time {
	if p.now != nil {
		return p.now
	}
	return time.Now
}

// Stat samples a path once, used by both stability modes and direct callers.
type Stat func(ctx context.Context, path string) (StatResult, error)

// IsStable probes path according to the policy. A failing sample in
// multi-sample mode, or a stat error in either mode, reports (false, nil):
// the caller treats it as "skip silently for this run", not as an error to
// propagate. Gateway.Stat already exhausts its own retries, so a stat
// error reaching here — retryable or not — is folded into an unstable
// verdict rather than surfaced.
func IsStable(ctx context.Context, policy StabilityPolicy, stat Stat, path string) (bool, error) {
	if policy.MinAgeMode() {
		return isStableMinAge(ctx, policy, stat, path)
	}
	return isStableMultiSample(ctx, policy, stat, path)
}

func isStableMinAge(ctx context.Context, policy StabilityPolicy, stat Stat, path string) (bool, error) {
	result, err := stat(ctx, path)
	if err != nil {
		return false, nil
	}
	age := policy.clock()().Sub(result.newer())
	return age >= policy.MinAge, nil
}

func isStableMultiSample(ctx context.Context, policy StabilityPolicy, stat Stat, path string) (bool, error) {
	count := policy.CheckCount
	if count < 2 {
		count = 2
	}

	first, err := stat(ctx, path)
	if err != nil {
		return false, nil
	}

	for i := 1; i < count; i++ {
		select {
		case <-time.After(policy.CheckInterval):
		case <-ctx.Done():
			return false, ctx.Err()
		}

		next, err := stat(ctx, path)
		if err != nil {
			return false, nil
		}
		if !first.equal(next) {
			return false, nil
		}
		first = next
	}
	return true, nil
}
