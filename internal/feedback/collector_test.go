package feedback

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/testutil"
)

type recordedOutcome struct {
	fingerprint string
	success     bool
}

type fakeRecorder struct {
	gate    chan struct{}
	calls   []recordedOutcome
	entered atomic.Int32
	mu      sync.Mutex
}

func (f *fakeRecorder) RecordOutcome(_ context.Context, fp string, success bool) (float64, error) {
	f.entered.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedOutcome{fingerprint: fp, success: success})
	return 0.5, nil
}

func (f *fakeRecorder) recorded() []recordedOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedOutcome(nil), f.calls...)
}

func withFingerprint(fp string) func(*model.Classification) {
	return func(c *model.Classification) { c.CacheFingerprint = fp }
}

func TestRecord_OutcomesByKind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	recorder := &fakeRecorder{}
	collector, err := NewCollector(db.Storage, recorder, Options{})
	require.NoError(t, err)

	c := db.MustSeedClassification("change-1", "tenant-a", withFingerprint("fp-1"))
	ctx := context.Background()

	for _, kind := range []model.FeedbackKind{
		model.FeedbackImplicitView,
		model.FeedbackImplicitClick,
		model.FeedbackActionCompleted,
		model.FeedbackExplicitWrong,
	} {
		ev, err := collector.Record(ctx, Input{ClassificationID: c.ID, Kind: kind})
		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, "tenant-a", ev.Scope, "scope defaults to the classification's")
	}

	require.NoError(t, collector.Close())

	assert.Equal(t, []recordedOutcome{
		{fingerprint: "fp-1", success: true},
		{fingerprint: "fp-1", success: false},
	}, recorder.recorded())

	count, err := db.Storage.CountFeedback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRecord_Orphaned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	collector, err := NewCollector(db.Storage, &fakeRecorder{}, Options{})
	require.NoError(t, err)
	defer collector.Close()

	_, err = collector.Record(context.Background(), Input{ClassificationID: "ghost", Kind: model.FeedbackExplicitHelpful})
	require.ErrorIs(t, err, common.ErrFeedbackOrphaned)

	count, err := db.Storage.CountFeedback(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecord_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	collector, err := NewCollector(db.Storage, &fakeRecorder{}, Options{})
	require.NoError(t, err)
	defer collector.Close()

	negative := -time.Second
	tests := []struct {
		name  string
		input Input
	}{
		{name: "missing classification", input: Input{Kind: model.FeedbackImplicitView}},
		{name: "unknown kind", input: Input{ClassificationID: "x", Kind: "thumbs_sideways"}},
		{name: "negative time to action", input: Input{ClassificationID: "x", Kind: model.FeedbackActionCompleted, TimeToAction: &negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collector.Record(context.Background(), tt.input)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestRecord_DropsWhenQueueFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	recorder := &fakeRecorder{gate: make(chan struct{})}
	collector, err := NewCollector(db.Storage, recorder, Options{QueueSize: 1})
	require.NoError(t, err)

	c := db.MustSeedClassification("change-1", "", withFingerprint("fp-1"))
	ctx := context.Background()
	record := func() {
		_, err := collector.Record(ctx, Input{ClassificationID: c.ID, Kind: model.FeedbackExplicitHelpful})
		require.NoError(t, err)
	}

	record()
	require.Eventually(t, func() bool { return recorder.entered.Load() == 1 }, time.Second, time.Millisecond)
	record() // queued
	record() // dropped

	close(recorder.gate)
	require.NoError(t, collector.Close())

	assert.Len(t, recorder.recorded(), 2)
	assert.Equal(t, int64(1), collector.Dropped())
}

func TestRecord_UpdatesSolutionSuccessRate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	solutions, err := cache.New(db.Storage, cache.DefaultOptions())
	require.NoError(t, err)
	defer solutions.Close()
	ctx := context.Background()

	res, err := solutions.GetOrGenerate(ctx, "classification:impressum", "Phone number required", "Imprint must list a phone number",
		func(context.Context) (cache.Generated, error) {
			return cache.Generated{Text: "{}", ModelVersion: "test-model"}, nil
		})
	require.NoError(t, err)

	c := db.MustSeedClassification("change-1", "", withFingerprint(res.Solution.Fingerprint))
	collector, err := NewCollector(db.Storage, solutions, Options{})
	require.NoError(t, err)

	_, err = collector.Record(ctx, Input{ClassificationID: c.ID, Kind: model.FeedbackExplicitNotHelpful})
	require.NoError(t, err)
	require.NoError(t, collector.Close())

	stored, err := solutions.Lookup(ctx, res.Solution.Fingerprint)
	require.NoError(t, err)
	assert.InDelta(t, 0.72, stored.SuccessRate, 1e-9)
}

func TestArchive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now().UTC()
	collector, err := NewCollector(db.Storage, &fakeRecorder{}, Options{
		Retention: 90 * 24 * time.Hour,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	defer collector.Close()

	c := db.MustSeedClassification("change-1", "")
	db.MustSeedFeedback(c.ID, model.FeedbackImplicitView, 3, now.Add(-100*24*time.Hour))
	db.MustSeedFeedback(c.ID, model.FeedbackImplicitView, 2, now.Add(-time.Hour))

	moved, err := collector.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), moved)

	count, err := db.Storage.CountFeedback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
