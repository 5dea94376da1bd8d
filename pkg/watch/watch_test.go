package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-outline/pkg/refresh"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"2d6h30m", 54*time.Hour + 30*time.Minute, false},
		{"0s", 0, true},
		{"-1h", 0, true},
		{"0d", 0, true},
		{"xd", 0, true},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h30m"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatInterval(tt.input))
			back, err := ParseInterval(tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.input, back)
		})
	}
}

func TestStateManager_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	sm := NewStateManager(dir)
	require.NoError(t, sm.Load(), "missing file is an empty state")

	_, exists := sm.GetSourceState("acme")
	assert.False(t, exists)
	assert.True(t, sm.ShouldRun("acme", time.Hour))

	sm.Record(refresh.SourceResult{SourceKey: "acme", Outcome: refresh.OutcomeUpdated, Sections: 4})
	sm.Record(refresh.SourceResult{SourceKey: "down", Outcome: refresh.OutcomeFailed, ErrorType: "HTTP_5xx"})
	require.NoError(t, sm.Save())

	_, err := os.Stat(filepath.Join(dir, "watch_state.json"))
	require.NoError(t, err)

	reloaded := NewStateManager(dir)
	require.NoError(t, reloaded.Load())
	state, exists := reloaded.GetSourceState("acme")
	require.True(t, exists)
	assert.Equal(t, refresh.OutcomeUpdated, state.Outcome)
	assert.Equal(t, 4, state.Sections)
	assert.False(t, reloaded.ShouldRun("acme", time.Hour))
	assert.Equal(t, "HTTP_5xx", reloaded.AllSourceStates()["down"].ErrorType)
}

func TestStateManager_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0644))
	assert.Error(t, NewStateManager(dir).Load())
}

func TestStateManager_NextRunTime(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return fixed }

	assert.Equal(t, fixed, sm.NextRunTime("new", time.Hour))

	sm.Record(refresh.SourceResult{SourceKey: "acme", Outcome: refresh.OutcomeUnchanged})
	assert.Equal(t, fixed.Add(time.Hour), sm.NextRunTime("acme", time.Hour))

	sm.now = func() time.Time { return fixed.Add(61 * time.Minute) }
	assert.True(t, sm.ShouldRun("acme", time.Hour))
}

type recordingRefresher struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingRefresher) Run(_ context.Context, keys []string) []refresh.SourceResult {
	r.mu.Lock()
	r.calls = append(r.calls, keys)
	r.mu.Unlock()
	results := make([]refresh.SourceResult, len(keys))
	for i, k := range keys {
		results[i] = refresh.SourceResult{SourceKey: k, Outcome: refresh.OutcomeUpdated}
	}
	return results
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestScheduler_RunDue(t *testing.T) {
	dir := t.TempDir()
	ref := &recordingRefresher{}
	s := NewScheduler(ref, dir, []string{"a", "b"}, time.Hour, testLogger())

	results := s.RunDue(context.Background())
	assert.Len(t, results, 2)
	assert.Nil(t, s.RunDue(context.Background()), "nothing due within the interval")
	require.Len(t, ref.calls, 1)
	assert.Equal(t, []string{"a", "b"}, ref.calls[0])

	status := s.Status()
	assert.Equal(t, refresh.OutcomeUpdated, status["a"].Outcome)

	// A new scheduler over the same state dir remembers the last run
	again := NewScheduler(ref, dir, []string{"a", "b", "c"}, time.Hour, testLogger())
	require.NoError(t, again.state.Load())
	again.RunDue(context.Background())
	require.Len(t, ref.calls, 2)
	assert.Equal(t, []string{"c"}, ref.calls[1])
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	ref := &recordingRefresher{}
	s := NewScheduler(ref, t.TempDir(), []string{"a"}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		ref.mu.Lock()
		defer ref.mu.Unlock()
		return len(ref.calls) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, time.Minute, tickInterval(5*time.Minute))
	assert.Equal(t, 6*time.Minute, tickInterval(time.Hour))
	assert.Equal(t, 10*time.Minute, tickInterval(7*24*time.Hour))
}
