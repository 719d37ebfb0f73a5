package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/response"
)

const metricsInterval = 7 * time.Second

// LiveCounter reports the number of sessions currently held in memory.
type LiveCounter interface {
	LiveCount() int
}

// SystemHandler serves the health probe and streams runtime metrics via SSE.
type SystemHandler struct {
	sessions    LiveCounter
	rdb         *redis.Client // nil unless the redis relay is enabled
	storeDriver string
	startTime   time.Time
	log         zerolog.Logger
	interval    time.Duration
}

func NewSystemHandler(sessions LiveCounter, rdb *redis.Client, storeDriver string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		sessions:    sessions,
		rdb:         rdb,
		storeDriver: storeDriver,
		startTime:   time.Now(),
		log:         log.With().Str("component", "system_handler").Logger(),
		interval:    metricsInterval,
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":        "ok",
		"store":         h.storeDriver,
		"live_sessions": h.sessions.LiveCount(),
		"uptime":        formatDuration(time.Since(h.startTime)),
	})
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	LiveSessions int   `json:"live_sessions"`
	QueueEvents  int64 `json:"queue_events"`
}

// MetricsSSE godoc
// GET /api/v1/system/metrics
func (h *SystemHandler) MetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Debug().Msg("Client connected to metrics SSE")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(reqCtx, c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Debug().Msg("Client disconnected from metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(reqCtx, c)
		}
	}
}

func (h *SystemHandler) writeMetrics(ctx context.Context, c *gin.Context) {
	data, err := json.Marshal(h.collect(ctx))
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp:    time.Now().Unix(),
		Uptime:       formatDuration(time.Since(h.startTime)),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		LiveSessions: h.sessions.LiveCount(),
	}

	m.LoadAvg1, m.LoadAvg5, m.LoadAvg15, _ = readLoadAvg()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.NumGC = ms.NumGC

	if h.rdb != nil {
		if n, err := h.rdb.LLen(ctx, config.WorkerKey.AttemptEventsQueue).Result(); err == nil {
			m.QueueEvents = n
		}
	}
	return m
}

// readLoadAvg parses /proc/loadavg.
func readLoadAvg() (load1, load5, load15 float64, err error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected /proc/loadavg format")
	}
	load1, _ = strconv.ParseFloat(fields[0], 64)
	load5, _ = strconv.ParseFloat(fields[1], 64)
	load15, _ = strconv.ParseFloat(fields[2], 64)
	return load1, load5, load15, nil
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
