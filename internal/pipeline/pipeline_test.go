package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcmukkamala/aqi-pipeline/internal/model"
	"github.com/rcmukkamala/aqi-pipeline/internal/notify"
	"github.com/rcmukkamala/aqi-pipeline/internal/store"
	"github.com/rcmukkamala/aqi-pipeline/pkg/config"
)

type fakeStore struct {
	rows     map[string][]store.RawObservation
	fetchErr map[string]error

	cities    []string
	citiesErr error

	cols    map[string]struct{}
	colsErr error

	upsertErr error
	insertErr error
	upserts   []map[string]any
	inserts   []map[string]any
}

func (s *fakeStore) FetchCityWindow(_ context.Context, city string, _ time.Time) ([]store.RawObservation, error) {
	if err := s.fetchErr[city]; err != nil {
		return nil, err
	}
	return s.rows[city], nil
}

func (s *fakeStore) DiscoverCities(context.Context, time.Time, int) ([]string, error) {
	return s.cities, s.citiesErr
}

func (s *fakeStore) ResultColumns(context.Context) (map[string]struct{}, error) {
	return s.cols, s.colsErr
}

func (s *fakeStore) UpsertResult(_ context.Context, row map[string]any) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, row)
	return nil
}

func (s *fakeStore) InsertResult(_ context.Context, row map[string]any) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts = append(s.inserts, row)
	return nil
}

// constantModel predicts a fixed value for every horizon of every city.
type constantModel struct{ value float64 }

func (m constantModel) Predict(model.Frame) (float64, error) { return m.value, nil }
func (m constantModel) FeatureNames() []string               { return nil }

type constantModels struct{ value float64 }

func (s constantModels) Load(string, string) model.Model { return constantModel{s.value} }

type digestRecorder struct {
	events []notify.AnomalyEvent
	err    error
}

func (r *digestRecorder) SendAnomalyDigest(events []notify.AnomalyEvent) error {
	r.events = append(r.events, events...)
	return r.err
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Lookback:        24 * time.Hour,
		CityPageSize:    1000,
		ZScoreThreshold: 2.5,
		MinHistory:      8,
		Contamination:   0.05,
	}
}

func newTestPipeline(st Store, models ModelSource, notifier Notifier) *Pipeline {
	return New(st, models, nil, notifier, testPipelineConfig(), testLogger())
}

func TestRunWritesFilteredRows(t *testing.T) {
	st := &fakeStore{
		rows:   map[string][]store.RawObservation{"Testville": testvilleRows(25)},
		cities: []string{"Testville"},
		cols:   map[string]struct{}{"city": {}, "aqi": {}},
	}

	err := newTestPipeline(st, constantModels{42}, nil).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, st.upserts, 1)
	assert.Empty(t, st.inserts)

	record := st.upserts[0]
	assert.Len(t, record, 2)
	assert.Equal(t, "Testville", record["city"])
	assert.Equal(t, 40.0, record["aqi"])
}

func TestRunSchemaDiscoveryFallsBack(t *testing.T) {
	st := &fakeStore{
		rows:    map[string][]store.RawObservation{"Testville": testvilleRows(25)},
		cities:  []string{"Testville"},
		colsErr: errors.New("relation does not exist"),
	}

	err := newTestPipeline(st, constantModels{42}, nil).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, st.upserts, 1)
	record := st.upserts[0]
	for col := range record {
		_, ok := store.FallbackResultColumns[col]
		assert.True(t, ok, "column %q not in fallback set", col)
	}
	assert.Equal(t, 42.0, record["aqi_1h_pred"])
}

func TestRunCityDiscoveryError(t *testing.T) {
	st := &fakeStore{citiesErr: errors.New("connection refused")}

	err := newTestPipeline(st, constantModels{42}, nil).Run(context.Background())

	require.Error(t, err)
	assert.ErrorContains(t, err, "city list")
}

func TestRunNoCities(t *testing.T) {
	st := &fakeStore{cols: map[string]struct{}{"city": {}}}

	err := newTestPipeline(st, constantModels{42}, nil).Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, st.upserts)
}

func TestRunCityFailureDoesNotAbortBatch(t *testing.T) {
	st := &fakeStore{
		rows: map[string][]store.RawObservation{
			"Goodville": testvilleRows(25),
		},
		fetchErr: map[string]error{"Badville": errors.New("query timeout")},
		cities:   []string{"Badville", "Goodville"},
		cols:     map[string]struct{}{"city": {}, "aqi": {}},
	}

	err := newTestPipeline(st, constantModels{42}, nil).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, st.upserts, 1)
	assert.Equal(t, "Goodville", st.upserts[0]["city"])
}

func TestRunUpsertFailureFallsBackToInsert(t *testing.T) {
	st := &fakeStore{
		rows:      map[string][]store.RawObservation{"Testville": testvilleRows(25)},
		cities:    []string{"Testville"},
		cols:      map[string]struct{}{"city": {}, "aqi": {}},
		upsertErr: errors.New("no unique constraint"),
	}

	err := newTestPipeline(st, constantModels{42}, nil).Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, st.upserts)
	require.Len(t, st.inserts, 1)
	assert.Equal(t, "Testville", st.inserts[0]["city"])
}

func TestRunDropsRowWhenBothWritesFail(t *testing.T) {
	st := &fakeStore{
		rows:      map[string][]store.RawObservation{"Testville": testvilleRows(25)},
		cities:    []string{"Testville"},
		cols:      map[string]struct{}{"city": {}, "aqi": {}},
		upsertErr: errors.New("no unique constraint"),
		insertErr: errors.New("value too long"),
	}

	err := newTestPipeline(st, constantModels{42}, nil).Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, st.upserts)
	assert.Empty(t, st.inserts)
}

func TestRunDigestsOnlyAnomalousCities(t *testing.T) {
	// Calmville holds steady; Spikeville's latest reading jumps an order of
	// magnitude above its flat history.
	spiking := testvilleRows(25)
	spiking[len(spiking)-1].PM25 = 400
	st := &fakeStore{
		rows: map[string][]store.RawObservation{
			"Calmville":  testvilleRows(25),
			"Spikeville": spiking,
		},
		cities: []string{"Calmville", "Spikeville"},
		cols:   map[string]struct{}{"city": {}, "aqi": {}, "anomaly": {}},
	}
	recorder := &digestRecorder{}

	err := newTestPipeline(st, constantModels{42}, recorder).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, recorder.events, 1)
	assert.Equal(t, "Spikeville", recorder.events[0].City)
	assert.Equal(t, "Severe", recorder.events[0].Category)
}
