package watch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/refresh"
)

// Refresher runs a refresh pass over a set of sources
type Refresher interface {
	Run(ctx context.Context, sourceKeys []string) []refresh.SourceResult
}

// Scheduler refreshes sources whenever their interval has elapsed
type Scheduler struct {
	refresher  Refresher
	state      *StateManager
	sourceKeys []string
	interval   time.Duration
	tick       time.Duration
	log        *logrus.Entry
}

// NewScheduler creates a scheduler persisting its state under stateDir
func NewScheduler(refresher Refresher, stateDir string, sourceKeys []string, interval time.Duration, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		refresher:  refresher,
		state:      NewStateManager(stateDir),
		sourceKeys: sourceKeys,
		interval:   interval,
		tick:       tickInterval(interval),
		log:        log,
	}
}

// Run refreshes due sources immediately, then on every tick until ctx is done.
// Refresh passes never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.state.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}
	s.log.Infof("Watching %d sources every %s", len(s.sourceKeys), FormatInterval(s.interval))
	s.logSchedule()

	s.RunDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue refreshes the sources that are due and persists their state
func (s *Scheduler) RunDue(ctx context.Context) []refresh.SourceResult {
	due := s.dueSources()
	if len(due) == 0 {
		s.logNextRun()
		return nil
	}

	s.log.Infof("Refreshing %d due sources: %v", len(due), due)
	results := s.refresher.Run(ctx, due)
	for _, r := range results {
		if ctx.Err() != nil && r.ErrorType == "System_ContextCanceled" {
			continue // interrupted, retry next time
		}
		s.state.Record(r)
	}
	if err := s.state.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
	return results
}

// Status returns the recorded state of every watched source
func (s *Scheduler) Status() map[string]SourceState {
	return s.state.AllSourceStates()
}

func (s *Scheduler) dueSources() []string {
	var due []string
	for _, key := range s.sourceKeys {
		if s.state.ShouldRun(key, s.interval) {
			due = append(due, key)
		}
	}
	return due
}

// tickInterval checks a tenth of the interval, clamped to [1m, 10m]
func tickInterval(interval time.Duration) time.Duration {
	return min(max(interval/10, time.Minute), 10*time.Minute)
}

func (s *Scheduler) logSchedule() {
	for _, key := range s.sourceKeys {
		state, exists := s.state.GetSourceState(key)
		if !exists {
			s.log.WithField("source", key).Info("Never refreshed, running now")
			continue
		}
		s.log.WithFields(logrus.Fields{
			"source":   key,
			"last_run": state.LastRunTime.Format(time.RFC3339),
			"outcome":  state.Outcome,
			"next_run": s.state.NextRunTime(key, s.interval).Format(time.RFC3339),
		}).Info("Scheduled")
	}
}

func (s *Scheduler) logNextRun() {
	var nextKey string
	var next time.Time
	for _, key := range s.sourceKeys {
		t := s.state.NextRunTime(key, s.interval)
		if nextKey == "" || t.Before(next) {
			nextKey, next = key, t
		}
	}
	if nextKey == "" {
		return
	}
	until := max(time.Until(next), 0)
	s.log.Infof("Next refresh: %s in %v (at %s)", nextKey, until.Round(time.Second), next.Format("15:04:05"))
}
