package metrics

import (
	"fmt"
	"sync"
	"time"
)

// CommitProfiler profiles transaction commits as a sequence of named,
// caller-timed stages, adapted from the teacher's QueryProfiler.
// pkg/engine times each whole mvcc commit as a single "commit" stage.
type CommitProfiler struct {
	enabled bool
	mu      sync.RWMutex
}

// ProfileSession represents a single profiling session for one commit.
type ProfileSession struct {
	startTime    time.Time
	stages       []ProfileStage
	currentStage *ProfileStage
	metadata     map[string]interface{}
	mu           sync.Mutex
}

// ProfileStage represents a single stage of a commit.
type ProfileStage struct {
	Name       string                 `json:"name"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Duration   time.Duration          `json:"duration_ns"`
	DurationMS float64                `json:"duration_ms"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// ProfileResult contains the complete profile of a commit.
type ProfileResult struct {
	TotalDuration   time.Duration          `json:"total_duration_ns"`
	TotalDurationMS float64                `json:"total_duration_ms"`
	Stages          []ProfileStage         `json:"stages"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	StartTime       time.Time              `json:"start_time"`
	EndTime         time.Time              `json:"end_time"`
}

// NewCommitProfiler creates a new commit profiler.
func NewCommitProfiler(enabled bool) *CommitProfiler {
	return &CommitProfiler{enabled: enabled}
}

// Enable enables profiling.
func (cp *CommitProfiler) Enable() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.enabled = true
}

// Disable disables profiling.
func (cp *CommitProfiler) Disable() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.enabled = false
}

// IsEnabled returns whether profiling is enabled.
func (cp *CommitProfiler) IsEnabled() bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.enabled
}

// StartProfile starts a new profiling session. Returns nil if disabled.
func (cp *CommitProfiler) StartProfile() *ProfileSession {
	if !cp.IsEnabled() {
		return nil
	}

	return &ProfileSession{
		startTime: time.Now(),
		stages:    make([]ProfileStage, 0, 4),
		metadata:  make(map[string]interface{}),
	}
}

// AddMetadata adds metadata to the profile session.
func (ps *ProfileSession) AddMetadata(key string, value interface{}) {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.metadata[key] = value
}

// StartStage starts a new profiling stage, closing any stage in progress.
func (ps *ProfileSession) StartStage(name string) {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.closeCurrentStageLocked()

	stage := ProfileStage{
		Name:      name,
		StartTime: time.Now(),
		Details:   make(map[string]interface{}),
	}
	ps.stages = append(ps.stages, stage)
	ps.currentStage = &ps.stages[len(ps.stages)-1]
}

// EndStage ends the current profiling stage.
func (ps *ProfileSession) EndStage() {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.closeCurrentStageLocked()
}

func (ps *ProfileSession) closeCurrentStageLocked() {
	if ps.currentStage == nil || !ps.currentStage.EndTime.IsZero() {
		return
	}
	ps.currentStage.EndTime = time.Now()
	ps.currentStage.Duration = ps.currentStage.EndTime.Sub(ps.currentStage.StartTime)
	ps.currentStage.DurationMS = float64(ps.currentStage.Duration.Nanoseconds()) / 1e6
	if len(ps.stages) > 0 {
		ps.stages[len(ps.stages)-1] = *ps.currentStage
	}
}

// AddStageDetail adds a detail to the current stage.
func (ps *ProfileSession) AddStageDetail(key string, value interface{}) {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.currentStage != nil {
		ps.currentStage.Details[key] = value
	}
}

// Finish completes the profiling session and returns the result.
func (ps *ProfileSession) Finish() *ProfileResult {
	if ps == nil {
		return nil
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.closeCurrentStageLocked()

	endTime := time.Now()
	return &ProfileResult{
		TotalDuration:   endTime.Sub(ps.startTime),
		TotalDurationMS: float64(endTime.Sub(ps.startTime).Nanoseconds()) / 1e6,
		Stages:          ps.stages,
		Metadata:        ps.metadata,
		StartTime:       ps.startTime,
		EndTime:         endTime,
	}
}

// GetSummary returns a human-readable summary of the profile.
func (pr *ProfileResult) GetSummary() string {
	if pr == nil {
		return "No profile data"
	}

	summary := fmt.Sprintf("Total Duration: %.2fms\n", pr.TotalDurationMS)
	summary += fmt.Sprintf("Start Time: %s\n", pr.StartTime.Format(time.RFC3339Nano))
	summary += fmt.Sprintf("End Time: %s\n\n", pr.EndTime.Format(time.RFC3339Nano))
	summary += "Stages:\n"

	for i, stage := range pr.Stages {
		pct := (float64(stage.Duration.Nanoseconds()) / float64(pr.TotalDuration.Nanoseconds())) * 100
		summary += fmt.Sprintf("  %d. %s: %.2fms (%.1f%%)\n", i+1, stage.Name, stage.DurationMS, pct)
	}
	return summary
}

// GetBottleneck returns the slowest stage.
func (pr *ProfileResult) GetBottleneck() *ProfileStage {
	if pr == nil || len(pr.Stages) == 0 {
		return nil
	}

	var bottleneck *ProfileStage
	var maxDuration time.Duration
	for i := range pr.Stages {
		if pr.Stages[i].Duration > maxDuration {
			maxDuration = pr.Stages[i].Duration
			bottleneck = &pr.Stages[i]
		}
	}
	return bottleneck
}

// ProfileCommit profiles one commit's stages via fn, tagging the session
// with txID before handing it to fn.
func (cp *CommitProfiler) ProfileCommit(txID uint64, fn func(*ProfileSession) error) (*ProfileResult, error) {
	session := cp.StartProfile()
	if session != nil {
		session.AddMetadata("tx_id", txID)
	}

	err := fn(session)

	var result *ProfileResult
	if session != nil {
		result = session.Finish()
	}
	return result, err
}

// TimeStage is a helper to time a single stage with defer.
func TimeStage(session *ProfileSession, name string) func() {
	if session == nil {
		return func() {}
	}
	session.StartStage(name)
	return func() {
		session.EndStage()
	}
}
