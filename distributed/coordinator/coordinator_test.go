package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqleval/core"
	"sqleval/distributed/communication"
	"sqleval/distributed/worker"
	"sqleval/expr"
	"sqleval/vectorized"
)

type cluster struct {
	transport   *communication.MemoryTransport
	services    []*worker.Service
	coordinator *Coordinator
}

func newCluster(t *testing.T, workers int, chunkSize int) *cluster {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Worker.PoolSize = 2
	cfg.Worker.BatchSize = chunkSize
	cfg.Codec.Compression = "snappy"

	c := &cluster{transport: communication.NewMemoryTransport()}
	ctx := context.Background()
	coord, err := NewCoordinator(c.transport, cfg)
	require.NoError(t, err)
	c.coordinator = coord

	for i := 0; i < workers; i++ {
		id := fmt.Sprintf("worker-%d", i+1)
		pool, err := worker.NewPool(id, cfg, nil)
		require.NoError(t, err)
		svc := worker.NewService(pool)
		address := "mem://" + id
		require.NoError(t, c.transport.StartWorkerServer(address, svc))
		require.NoError(t, coord.RegisterWorker(ctx, &communication.WorkerInfo{ID: id, Address: address}))
		c.services = append(c.services, svc)
	}
	t.Cleanup(func() {
		coord.Shutdown(ctx)
		for _, svc := range c.services {
			svc.Shutdown(ctx)
		}
		c.transport.Stop()
	})
	return c
}

func sequenceBatch(t *testing.T, n int) *vectorized.VectorBatch {
	t.Helper()
	values := make([]interface{}, n)
	for i := range values {
		values[i] = i
	}
	values[4] = nil
	batch := vectorized.NewVectorBatch(n)
	require.NoError(t, batch.AddColumn("n", vectorized.MustFromValues(vectorized.Int64(), values...)))
	return batch
}

func TestEvaluateAcrossWorkers(t *testing.T) {
	c := newCluster(t, 3, 3)
	batch := sequenceBatch(t, 10)

	node := expr.Binary(expr.OpMultiply, expr.Col("n"), expr.Int(10))
	out, stats, err := c.coordinator.Evaluate(context.Background(), node, batch)
	require.NoError(t, err)

	want := make([]interface{}, 10)
	for i := range want {
		want[i] = int64(i * 10)
	}
	want[4] = nil
	assert.True(t, out.Type.Equal(vectorized.Int64()))
	assert.Equal(t, want, out.Values())

	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 3, stats.WorkersUsed)
	assert.Len(t, stats.WorkerStats, 3)
	assert.Positive(t, stats.BytesSent)
	for id, ws := range stats.WorkerStats {
		assert.Positive(t, ws.BytesIn, id)
		assert.Positive(t, ws.BytesOut, id)
	}
}

func TestEvaluateCaseAcrossChunks(t *testing.T) {
	c := newCluster(t, 2, 2)
	batch := vectorized.NewVectorBatch(4)
	require.NoError(t, batch.AddColumn("k", vectorized.MustFromValues(vectorized.Int64(), 1, 1, 2, 2)))

	// Each chunk takes a single branch.
	node := &expr.Case{
		Whens: []expr.When{{Cond: expr.Binary(expr.OpEq, expr.Col("k"), expr.Int(1)), Result: expr.Int(7)}},
		Else:  expr.Float(0.5),
	}
	out, _, err := c.coordinator.Evaluate(context.Background(), node, batch)
	require.NoError(t, err)
	assert.True(t, out.Type.Equal(vectorized.Float64()), out.Type.String())
	assert.Equal(t, []interface{}{7.0, 7.0, 0.5, 0.5}, out.Values())
}

func TestEvaluateQuantifiedAcrossChunks(t *testing.T) {
	c := newCluster(t, 2, 2)
	batch := vectorized.NewVectorBatch(4)
	require.NoError(t, batch.AddColumn("n", vectorized.MustFromValues(vectorized.Int64(), 1, 2, 3, 4)))

	node := &expr.Quantified{Quantifier: expr.QuantifierAll, Op: expr.OpGtEq, Left: expr.Col("n"), Right: expr.Col("n")}
	out, stats, err := c.coordinator.Evaluate(context.Background(), node, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, []interface{}{false, false, false, true}, out.Values())
}

func TestEvaluateErrorsKeepTheirKind(t *testing.T) {
	c := newCluster(t, 3, 2)
	batch := sequenceBatch(t, 6)

	_, _, err := c.coordinator.Evaluate(context.Background(),
		expr.Binary(expr.OpDivide, expr.Int(100), expr.Col("n")), batch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, expr.ErrArithmetic), err.Error())
	assert.Contains(t, err.Error(), "worker-1")

	_, _, err = c.coordinator.Evaluate(context.Background(), expr.Col("missing"), batch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, expr.ErrUnknownColumn), err.Error())
}

func TestEvaluateWithoutWorkers(t *testing.T) {
	coord, err := NewCoordinator(communication.NewMemoryTransport(), nil)
	require.NoError(t, err)
	_, _, err = coord.Evaluate(context.Background(), expr.Int(1), vectorized.NewVectorBatch(1))
	assert.ErrorContains(t, err, "no workers")
}

func TestEvaluateFailsWhenWorkerStops(t *testing.T) {
	c := newCluster(t, 2, 1)
	c.transport.StopWorkerServer("mem://worker-2")

	_, _, err := c.coordinator.Evaluate(context.Background(), expr.Col("n"), sequenceBatch(t, 5))
	assert.ErrorContains(t, err, "worker-2")
	assert.True(t, errors.Is(err, communication.ErrWorkerUnavailable), err.Error())
}

func TestRegisterWorker(t *testing.T) {
	c := newCluster(t, 1, 4)
	ctx := context.Background()

	err := c.coordinator.RegisterWorker(ctx, &communication.WorkerInfo{ID: "worker-1", Address: "mem://worker-1"})
	assert.ErrorContains(t, err, "already registered")

	err = c.coordinator.RegisterWorker(ctx, &communication.WorkerInfo{ID: "ghost", Address: "mem://ghost"})
	assert.Error(t, err)

	pool, err := worker.NewPool("late", core.DefaultConfig(), nil)
	require.NoError(t, err)
	svc := worker.NewService(pool)
	require.NoError(t, svc.Shutdown(ctx))
	require.NoError(t, c.transport.StartWorkerServer("mem://late", svc))
	err = c.coordinator.RegisterWorker(ctx, &communication.WorkerInfo{ID: "late", Address: "mem://late"})
	assert.ErrorContains(t, err, "health check failed")
}

func TestClusterStatus(t *testing.T) {
	c := newCluster(t, 3, 4)
	ctx := context.Background()

	require.NoError(t, c.services[1].Shutdown(ctx))
	c.transport.StopWorkerServer("mem://worker-3")

	status, err := c.coordinator.GetClusterStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalWorkers)
	assert.Equal(t, 1, status.ActiveWorkers)
	got := make(map[string]string)
	for _, w := range status.Workers {
		got[w.ID] = w.Status
	}
	assert.Equal(t, map[string]string{
		"worker-1": "active",
		"worker-2": "shutdown",
		"worker-3": "unreachable",
	}, got)

	require.NoError(t, c.coordinator.UnregisterWorker(ctx, "worker-3"))
	require.NoError(t, c.coordinator.UnregisterWorker(ctx, "worker-3"))
	status, err = c.coordinator.GetClusterStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalWorkers)
}
