package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	"StockPulse/pkg/config"
)

func scanJobs() []config.ScanJob {
	return []config.ScanJob{
		{Name: "close", Spec: "0 16 * * 1-5", Symbols: []string{"A", "B", "GONE"}, Market: "A", MinScore: 60},
		{Spec: "@hourly", Symbols: []string{"A"}, Market: "A"},
	}
}

func newScheduled(pub *recordingPublisher, jobs []config.ScanJob) *ScheduledScans {
	f := &stubFetcher{results: okResults(models.MarketA, "A", "B")}
	o := newTestOrchestrator(f, stubCalc{}, stubScorer{scores: map[string]int{"A": 70, "B": 30}}, nil)
	if pub == nil {
		return NewScheduledScans(o, nil, jobs, nil)
	}
	return NewScheduledScans(o, pub, jobs, nil)
}

func TestRunNowPublishesAndRecordsOutcome(t *testing.T) {
	pub := &recordingPublisher{}
	s := newScheduled(pub, scanJobs())

	out, err := s.RunNow("close")
	require.NoError(t, err)
	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Scanned)
	assert.Equal(t, 1, out.Matched)
	assert.Equal(t, 1, out.Errors)
	assert.True(t, strings.HasPrefix(out.RequestID, "cron-close-"))
	assert.False(t, out.Finished.IsZero())

	require.NotEmpty(t, pub.ids)
	assert.Equal(t, out.RequestID, pub.ids[0])

	last, ok := s.LastRun("close")
	require.True(t, ok)
	assert.Equal(t, out.RequestID, last.RequestID)
}

func TestRunNowWithoutPublisher(t *testing.T) {
	s := newScheduled(nil, scanJobs())

	out, err := s.RunNow("scan-1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Scanned)
	assert.Equal(t, 1, out.Matched)
	assert.Zero(t, out.Errors)
}

func TestRunNowUnknownJob(t *testing.T) {
	s := newScheduled(nil, scanJobs())
	_, err := s.RunNow("missing")
	assert.Error(t, err)
	_, ok := s.LastRun("missing")
	assert.False(t, ok)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := newScheduled(nil, []config.ScanJob{{Name: "bad", Spec: "every tuesday", Symbols: []string{"A"}, Market: "A"}})
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestStartAndStop(t *testing.T) {
	s := newScheduled(nil, scanJobs())
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
