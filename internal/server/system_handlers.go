package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/prices"
	"github.com/aristath/frontier/internal/scheduler"
)

// databaseStats is the part of *database.DB the status endpoint reads
type databaseStats interface {
	GetStats() (*database.Stats, error)
	QuickCheck(ctx context.Context) error
}

// cacheStats is the part of the cached price provider the status endpoint reads
type cacheStats interface {
	Stats() (prices.CacheStats, error)
}

// jobRunner runs jobs on demand
type jobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log             zerolog.Logger
	startupTime     time.Time
	cacheDB         databaseStats
	cache           cacheStats
	runner          jobRunner
	cacheCleanupJob scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	cacheDB databaseStats,
	cache cacheStats,
	runner jobRunner,
	cacheCleanupJob scheduler.Job,
) *SystemHandlers {
	return &SystemHandlers{
		log:             log.With().Str("service", "system").Logger(),
		startupTime:     time.Now(),
		cacheDB:         cacheDB,
		cache:           cache,
		runner:          runner,
		cacheCleanupJob: cacheCleanupJob,
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string             `json:"status"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	CPUPercent    float64            `json:"cpu_percent"`
	MemoryPercent float64            `json:"memory_percent"`
	Goroutines    int                `json:"goroutines"`
	PriceCache    *prices.CacheStats `json:"price_cache,omitempty"`
	CacheDB       *database.Stats    `json:"cache_db,omitempty"`
	Timestamp     string             `json:"timestamp"`
}

// HandleSystemStatus returns process and cache health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	if h.cacheDB != nil {
		if err := h.cacheDB.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Cache database check failed")
			response.Status = "degraded"
		} else if stats, err := h.cacheDB.GetStats(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to get cache database stats")
		} else {
			response.CacheDB = stats
		}
	}

	if h.cache != nil {
		stats, err := h.cache.Stats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get price cache stats")
			response.Status = "degraded"
		} else {
			response.PriceCache = &stats
		}
	}

	h.writeJSON(w, response)
}

// HandleTriggerCacheCleanup removes expired price cache entries immediately
// POST /api/system/jobs/cache-cleanup
func (h *SystemHandlers) HandleTriggerCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil || h.cacheCleanupJob == nil {
		h.log.Warn().Msg("Cache cleanup job not registered")
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": "Cache cleanup job not registered",
		})
		return
	}

	if err := h.runner.RunNow(h.cacheCleanupJob); err != nil {
		h.log.Error().Err(err).Msg("Cache cleanup failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Cache cleanup completed",
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
