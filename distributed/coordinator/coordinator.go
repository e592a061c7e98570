package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"sqleval/columnar"
	"sqleval/core"
	"sqleval/distributed/communication"
	"sqleval/expr"
	"sqleval/vectorized"
)

// Coordinator splits batches into chunks, ships them to registered workers
// and reassembles the result column
type Coordinator struct {
	workers    map[string]*WorkerConnection
	order      []string
	transport  communication.Transport
	compressor columnar.Compressor
	chunkSize  int
	tracer     *core.Tracer
	mutex      sync.RWMutex
	requestID  atomic.Int64
}

// WorkerConnection represents a connection to a worker
type WorkerConnection struct {
	Info     *communication.WorkerInfo
	Client   communication.WorkerClient
	Status   *communication.WorkerStatus
	LastSeen time.Time
}

// NewCoordinator creates a coordinator that encodes chunks of
// cfg.Worker.BatchSize rows with cfg.Codec
func NewCoordinator(transport communication.Transport, cfg *core.Config) (*Coordinator, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compressor, err := columnar.CompressorFromConfig(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		workers:    make(map[string]*WorkerConnection),
		transport:  transport,
		compressor: compressor,
		chunkSize:  cfg.Worker.BatchSize,
		tracer:     core.GetTracer(),
	}, nil
}

// RegisterWorker connects to a worker and adds it to the rotation
func (c *Coordinator) RegisterWorker(ctx context.Context, info *communication.WorkerInfo) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.workers[info.ID]; exists {
		return errors.Newf("worker %s is already registered", info.ID)
	}
	client, err := c.transport.NewWorkerClient(info.Address)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to worker %s", info.ID)
	}
	if err := client.Health(ctx); err != nil {
		client.Close()
		return errors.Wrapf(err, "worker %s health check failed", info.ID)
	}
	status, err := client.GetStatus(ctx)
	if err != nil {
		client.Close()
		return errors.Wrapf(err, "failed to get worker %s status", info.ID)
	}

	c.workers[info.ID] = &WorkerConnection{
		Info:     info,
		Client:   client,
		Status:   status,
		LastSeen: time.Now(),
	}
	c.order = append(c.order, info.ID)
	c.tracer.Info(core.TraceComponentWorker, "Worker registered", core.TraceContext(
		"workerID", info.ID,
		"address", info.Address,
		"poolSize", status.PoolSize,
	))
	return nil
}

// UnregisterWorker removes a worker; unknown IDs are ignored
func (c *Coordinator) UnregisterWorker(ctx context.Context, workerID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	w, exists := c.workers[workerID]
	if !exists {
		return nil
	}
	w.Client.Close()
	delete(c.workers, workerID)
	for i, id := range c.order {
		if id == workerID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.tracer.Info(core.TraceComponentWorker, "Worker unregistered", core.TraceContext("workerID", workerID))
	return nil
}

// GetClusterStatus polls every worker. A worker that does not answer is
// reported as unreachable.
func (c *Coordinator) GetClusterStatus(ctx context.Context) (*communication.ClusterStatus, error) {
	workers := c.snapshot()
	status := &communication.ClusterStatus{
		TotalWorkers: len(workers),
		Workers:      make([]communication.WorkerStatus, 0, len(workers)),
	}
	for _, w := range workers {
		s, err := w.Client.GetStatus(ctx)
		if err != nil {
			s = &communication.WorkerStatus{ID: w.Info.ID, Status: "unreachable"}
		} else {
			c.mutex.Lock()
			w.Status, w.LastSeen = s, time.Now()
			c.mutex.Unlock()
		}
		if s.Status == "active" {
			status.ActiveWorkers++
		}
		status.Workers = append(status.Workers, *s)
	}
	return status, nil
}

func (c *Coordinator) snapshot() []*WorkerConnection {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]*WorkerConnection, len(c.order))
	for i, id := range c.order {
		out[i] = c.workers[id]
	}
	return out
}

// Evaluate evaluates node over batch on the registered workers. Chunks are
// dealt round-robin in registration order. When several workers fail, the
// error of the first one in that order is returned with its evaluation
// marks intact.
func (c *Coordinator) Evaluate(ctx context.Context, node expr.Node, batch *vectorized.VectorBatch) (*vectorized.Vector, *communication.ClusterStats, error) {
	start := time.Now()
	workers := c.snapshot()
	if len(workers) == 0 {
		return nil, nil, errors.New("no workers registered")
	}
	// ALL/ANY sets come from the whole batch, not from one worker's chunk
	bound, err := expr.Bind(node, batch)
	if err != nil {
		return nil, nil, err
	}
	exprJSON, err := expr.MarshalNode(bound)
	if err != nil {
		return nil, nil, err
	}

	chunks, rows := vectorized.SplitBatch(batch, c.chunkSize)
	assigned := make([][]int, len(workers))
	for i := range chunks {
		w := i % len(workers)
		assigned[w] = append(assigned[w], i)
	}

	stats := &communication.ClusterStats{
		Chunks:      len(chunks),
		WorkerStats: make(map[string]communication.ExecutionStats),
	}
	parts := make([]*vectorized.Vector, len(chunks))
	errs := make([]error, len(workers))
	var statsMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for w, chunkIdx := range assigned {
		if len(chunkIdx) == 0 {
			continue
		}
		stats.WorkersUsed++
		g.Go(func() error {
			errs[w] = c.evaluateOn(gctx, workers[w], exprJSON, chunks, chunkIdx, parts, stats, &statsMu)
			return errs[w]
		})
	}
	if err := g.Wait(); err != nil {
		// report the failure of the earliest registered worker, not
		// whichever finished first
		for _, werr := range errs {
			if werr != nil && !errors.Is(werr, context.Canceled) {
				return nil, nil, werr
			}
		}
		return nil, nil, err
	}

	types := make([]*vectorized.Type, len(parts))
	for i, part := range parts {
		types[i] = part.Type
	}
	t, ok := vectorized.ResolveAll(types...)
	if !ok {
		return nil, nil, errors.Newf("chunks of %s produced incompatible types", node)
	}
	out, err := vectorized.Scatter(t, batch.RowCount, parts, rows)
	if err != nil {
		return nil, nil, err
	}
	stats.TotalTime = time.Since(start)
	c.tracer.Debug(core.TraceComponentWorker, "Distributed evaluation finished", core.TraceContext(
		"expr", node.String(),
		"chunks", stats.Chunks,
		"workers", stats.WorkersUsed,
		"bytesSent", stats.BytesSent,
		"duration", stats.TotalTime.String(),
	))
	return out, stats, nil
}

func (c *Coordinator) evaluateOn(
	ctx context.Context,
	w *WorkerConnection,
	exprJSON []byte,
	chunks []*vectorized.VectorBatch,
	chunkIdx []int,
	parts []*vectorized.Vector,
	stats *communication.ClusterStats,
	statsMu *sync.Mutex,
) error {
	req := &communication.EvaluateRequest{
		RequestID: fmt.Sprintf("eval-%d", c.requestID.Add(1)),
		Expr:      exprJSON,
		Payloads:  make([][]byte, len(chunkIdx)),
	}
	var sent int64
	for j, i := range chunkIdx {
		payload, err := columnar.EncodeBatch(chunks[i], c.compressor)
		if err != nil {
			return err
		}
		req.Payloads[j] = payload
		sent += int64(len(payload))
	}

	resp, err := w.Client.Evaluate(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "worker %s failed", w.Info.ID)
	}
	if resp.Error != nil {
		return errors.Wrapf(errors.DecodeError(ctx, *resp.Error), "worker %s", w.Info.ID)
	}
	if len(resp.Results) != len(chunkIdx) {
		return errors.Newf("worker %s returned %d results for %d chunks", w.Info.ID, len(resp.Results), len(chunkIdx))
	}
	for j, i := range chunkIdx {
		v, err := columnar.DecodeVector(resp.Results[j])
		if err != nil {
			return errors.Wrapf(err, "worker %s", w.Info.ID)
		}
		if v.Length != chunks[i].RowCount {
			return errors.Newf("worker %s returned %d rows for a chunk of %d", w.Info.ID, v.Length, chunks[i].RowCount)
		}
		parts[i] = v
	}

	statsMu.Lock()
	stats.BytesSent += sent
	stats.WorkerStats[w.Info.ID] = resp.Stats
	statsMu.Unlock()
	return nil
}

// Shutdown closes every worker connection
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mutex.Lock()
	workers := c.workers
	c.workers = make(map[string]*WorkerConnection)
	c.order = nil
	c.mutex.Unlock()

	for id, w := range workers {
		w.Client.Close()
		c.tracer.Info(core.TraceComponentWorker, "Disconnected from worker", core.TraceContext("workerID", id))
	}
	return nil
}
