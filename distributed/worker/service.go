package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"sqleval/core"
	"sqleval/distributed/communication"
	"sqleval/expr"
)

// Service exposes a Pool as a communication.WorkerService
type Service struct {
	pool     *Pool
	active   atomic.Int32
	shutdown atomic.Bool
}

// NewService wraps p. Shutdown releases the pool.
func NewService(p *Pool) *Service {
	return &Service{pool: p}
}

// Evaluate decodes the request expression and evaluates it over every
// payload. Evaluation failures are returned encoded in the response;
// the error result is reserved for requests the worker cannot accept.
func (s *Service) Evaluate(ctx context.Context, req *communication.EvaluateRequest) (*communication.EvaluateResponse, error) {
	if s.shutdown.Load() {
		return nil, errors.Newf("worker %s is shut down", s.pool.id)
	}
	s.active.Add(1)
	defer s.active.Add(-1)

	start := time.Now()
	resp := &communication.EvaluateResponse{RequestID: req.RequestID, WorkerID: s.pool.id}
	for _, p := range req.Payloads {
		resp.Stats.BytesIn += int64(len(p))
	}

	node, err := expr.UnmarshalNode(req.Expr)
	if err == nil {
		resp.Results, err = s.pool.EvaluateEncoded(ctx, node, req.Payloads)
	}
	resp.Stats.Duration = time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		encoded := errors.EncodeError(ctx, err)
		resp.Error = &encoded
		s.pool.tracer.Warn(core.TraceComponentWorker, "Evaluation request failed", core.TraceContext(
			"workerID", s.pool.id,
			"requestID", req.RequestID,
			"error", err.Error(),
		))
		return resp, nil
	}

	for _, r := range resp.Results {
		resp.Stats.BytesOut += int64(len(r))
	}
	s.pool.tracer.Debug(core.TraceComponentWorker, "Evaluation request served", core.TraceContext(
		"workerID", s.pool.id,
		"requestID", req.RequestID,
		"payloads", len(req.Payloads),
		"duration", resp.Stats.Duration.String(),
	))
	return resp, nil
}

// GetStatus reports pool size, in-flight requests and pattern cache usage
func (s *Service) GetStatus(ctx context.Context) (*communication.WorkerStatus, error) {
	status := "active"
	if s.shutdown.Load() {
		status = "shutdown"
	}
	stats := s.pool.patterns.Stats()
	return &communication.WorkerStatus{
		ID:             s.pool.id,
		Status:         status,
		PoolSize:       s.pool.size,
		ActiveRequests: int(s.active.Load()),
		CacheHits:      stats.Hits,
		CacheMisses:    stats.Misses,
		LastHeartbeat:  time.Now(),
	}, nil
}

// Health fails once the worker is shut down
func (s *Service) Health(ctx context.Context) error {
	if s.shutdown.Load() {
		return errors.Newf("worker %s is shut down", s.pool.id)
	}
	return nil
}

// Shutdown stops accepting requests and releases the pool
func (s *Service) Shutdown(ctx context.Context) error {
	if s.shutdown.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}
