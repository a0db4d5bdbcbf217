package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/platform"
	"equilibrium/internal/search"
	"equilibrium/internal/storage"
)

type fakeRuns map[string]platform.Snapshot

func (f fakeRuns) ActiveRuns() []string {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	return ids
}

func (f fakeRuns) Snapshot(runID string) (platform.Snapshot, bool) {
	snap, ok := f[runID]
	return snap, ok
}

type brokenStore struct {
	storage.Store
}

func (brokenStore) GetChampion(context.Context) (model.Champion, bool, error) {
	return model.Champion{}, false, errors.New("corrupt")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv := New(nil, storage.NewMemoryStore(), nil, nil)
	rec := get(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestState(t *testing.T) {
	runs := fakeRuns{"r1": {RunID: "r1", Strategy: "focused", BestFitness: 61.5, Phase: search.PhaseImproved}}
	srv := New(runs, storage.NewMemoryStore(), nil, nil)

	rec := get(t, srv.Handler(), "/state")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []platform.Snapshot `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, 61.5, body.Runs[0].BestFitness)

	rec = get(t, srv.Handler(), "/state/r1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"improved"`)

	rec = get(t, srv.Handler(), "/state/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChampion(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := New(nil, store, nil, nil)

	rec := get(t, srv.Handler(), "/champion")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, store.SaveChampion(context.Background(), model.Champion{
		VersionedRecord: storage.Versioned(),
		RunID:           "r1",
		Fitness:         77,
		Genome:          genotype.Baseline(),
	}))
	rec = get(t, srv.Handler(), "/champion")
	require.Equal(t, http.StatusOK, rec.Code)
	var champion model.Champion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &champion))
	assert.Equal(t, 77.0, champion.Fitness)
	assert.Equal(t, 20, champion.Genome.Player.BaseHP)

	broken := New(nil, brokenStore{store}, nil, nil)
	rec = get(t, broken.Handler(), "/champion")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBest(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := New(nil, store, nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/best").Code)

	require.NoError(t, store.SaveBest(context.Background(), model.BestRecord{Fitness: 55, Genome: genotype.Baseline()}))
	rec := get(t, srv.Handler(), "/best")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fitness":55`)
}

func TestSupervisedWithoutSupervisor(t *testing.T) {
	srv := New(nil, storage.NewMemoryStore(), nil, nil)
	rec := get(t, srv.Handler(), "/supervised")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}
