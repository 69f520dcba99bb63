package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compliance-engine/api"
	"github.com/warp/compliance-engine/engine"
)

func TestScheduler_RecordsPassRuns(t *testing.T) {
	// GIVEN: Seeded data and a scheduler
	// WHEN: Triggering a pass
	// THEN: The run shows up on the audit trail as completed

	ts := newTestServer(t)
	ts.seedCoreData(t)

	gen := engine.NewGenerator(ts.store.Stores(), engine.NopSink{}, t.Logf)
	scheduler := api.NewEvaluationScheduler(ts.store, gen)
	scheduler.RunNow()

	rec := ts.do(t, http.MethodGet, "/api/passes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeJSON[[]api.PassRunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 2, runs[0].Generated)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestScheduler_StartAndStop(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCoreData(t)

	gen := engine.NewGenerator(ts.store.Stores(), engine.NopSink{}, t.Logf)
	scheduler := api.NewEvaluationScheduler(ts.store, gen)
	scheduler.CheckInterval = time.Hour

	scheduler.Start()
	scheduler.Stop()

	// The startup pass ran before Stop returned
	rec := ts.do(t, http.MethodGet, "/api/passes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeJSON[[]api.PassRunDTO](t, rec))
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	ts := newTestServer(t)

	gen := engine.NewGenerator(ts.store.Stores(), engine.NopSink{}, t.Logf)
	scheduler := api.NewEvaluationScheduler(ts.store, gen)
	scheduler.Enabled = false

	scheduler.Start()
	scheduler.Stop()

	rec := ts.do(t, http.MethodGet, "/api/passes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]api.PassRunDTO](t, rec))
}
