package communication

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// EvaluateRequest asks a worker to evaluate one expression over batches
// shipped in columnar codec form
type EvaluateRequest struct {
	RequestID string          `json:"request_id"`
	Expr      json.RawMessage `json:"expr"`
	Payloads  [][]byte        `json:"payloads"`
}

// EvaluateResponse carries one encoded result column per request payload.
// Error is set instead of Results when evaluation failed; it decodes with
// errors.DecodeError and keeps the evaluation error marks.
type EvaluateResponse struct {
	RequestID string               `json:"request_id"`
	WorkerID  string               `json:"worker_id"`
	Results   [][]byte             `json:"results,omitempty"`
	Error     *errors.EncodedError `json:"error,omitempty"`
	Stats     ExecutionStats       `json:"stats"`
}

// ExecutionStats provides execution statistics
type ExecutionStats struct {
	Duration time.Duration `json:"duration"`
	BytesIn  int64         `json:"bytes_in"`
	BytesOut int64         `json:"bytes_out"`
}

// WorkerInfo contains information about a worker node
type WorkerInfo struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// WorkerStatus represents current worker state
type WorkerStatus struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	PoolSize       int       `json:"pool_size"`
	ActiveRequests int       `json:"active_requests"`
	CacheHits      int64     `json:"cache_hits"`
	CacheMisses    int64     `json:"cache_misses"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
}

// ClusterStatus represents the overall cluster state
type ClusterStatus struct {
	TotalWorkers  int            `json:"total_workers"`
	ActiveWorkers int            `json:"active_workers"`
	Workers       []WorkerStatus `json:"workers"`
}

// ClusterStats aggregates the statistics of one distributed evaluation
type ClusterStats struct {
	Chunks      int                       `json:"chunks"`
	WorkersUsed int                       `json:"workers_used"`
	BytesSent   int64                     `json:"bytes_sent"`
	WorkerStats map[string]ExecutionStats `json:"worker_stats"`
	TotalTime   time.Duration             `json:"total_time"`
}
