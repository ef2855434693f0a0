package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/prices"
	"github.com/aristath/frontier/internal/scheduler"
)

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) GetStats() (*database.Stats, error) {
	return &database.Stats{PageCount: 4, PageSize: 4096}, nil
}

func (f *fakeDB) QuickCheck(context.Context) error {
	return f.pingErr
}

type fakeCache struct {
	stats prices.CacheStats
	err   error
}

func (f *fakeCache) Stats() (prices.CacheStats, error) {
	return f.stats, f.err
}

type fakeJob struct {
	runs int
	err  error
}

func (j *fakeJob) Run() error {
	j.runs++
	return j.err
}

func (j *fakeJob) Name() string { return "fake" }

type directRunner struct{}

func (directRunner) RunNow(job scheduler.Job) error { return job.Run() }

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	tests := []struct {
		name           string
		db             *fakeDB
		cache          *fakeCache
		expectedStatus string
		validate       func(t *testing.T, response SystemStatusResponse)
	}{
		{
			name:           "healthy",
			db:             &fakeDB{},
			cache:          &fakeCache{stats: prices.CacheStats{Entries: 3, Fresh: 2, Bytes: 512}},
			expectedStatus: "healthy",
			validate: func(t *testing.T, response SystemStatusResponse) {
				require.NotNil(t, response.PriceCache)
				assert.Equal(t, int64(3), response.PriceCache.Entries)
				require.NotNil(t, response.CacheDB)
				assert.Equal(t, int64(4096), response.CacheDB.PageSize)
				assert.Positive(t, response.Goroutines)
			},
		},
		{
			name:           "database unreachable",
			db:             &fakeDB{pingErr: errors.New("closed")},
			cache:          &fakeCache{},
			expectedStatus: "degraded",
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.Nil(t, response.CacheDB)
			},
		},
		{
			name:           "cache stats failing",
			db:             &fakeDB{},
			cache:          &fakeCache{err: errors.New("no such table")},
			expectedStatus: "degraded",
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.Nil(t, response.PriceCache)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewSystemHandlers(zerolog.Nop(), tt.db, tt.cache, nil, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
			w := httptest.NewRecorder()
			handlers.HandleSystemStatus(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			var response SystemStatusResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedStatus, response.Status)
			assert.NotEmpty(t, response.Timestamp)
			if tt.validate != nil {
				tt.validate(t, response)
			}
		})
	}
}

func TestSystemHandlers_HandleTriggerCacheCleanup(t *testing.T) {
	t.Run("runs the job", func(t *testing.T) {
		job := &fakeJob{}
		handlers := NewSystemHandlers(zerolog.Nop(), nil, nil, directRunner{}, job)

		w := httptest.NewRecorder()
		handlers.HandleTriggerCacheCleanup(w, httptest.NewRequest(http.MethodPost, "/api/system/jobs/cache-cleanup", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, job.runs)
		assert.Contains(t, w.Body.String(), "success")
	})

	t.Run("job failure", func(t *testing.T) {
		job := &fakeJob{err: errors.New("disk full")}
		handlers := NewSystemHandlers(zerolog.Nop(), nil, nil, directRunner{}, job)

		w := httptest.NewRecorder()
		handlers.HandleTriggerCacheCleanup(w, httptest.NewRequest(http.MethodPost, "/api/system/jobs/cache-cleanup", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "disk full")
	})

	t.Run("not registered", func(t *testing.T) {
		handlers := NewSystemHandlers(zerolog.Nop(), nil, nil, nil, nil)

		w := httptest.NewRecorder()
		handlers.HandleTriggerCacheCleanup(w, httptest.NewRequest(http.MethodPost, "/api/system/jobs/cache-cleanup", nil))

		assert.Contains(t, w.Body.String(), "not registered")
	})
}
