package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"sqleval/columnar"
	"sqleval/core"
	"sqleval/distributed/monitoring"
	"sqleval/expr"
	"sqleval/pattern"
	"sqleval/vectorized"
)

// Pool evaluates expressions over many batches in parallel on a bounded
// goroutine pool. All methods are safe for concurrent use.
type Pool struct {
	id         string
	pool       *ants.Pool
	size       int
	batchSize  int
	patterns   *pattern.Cache
	evaluator  *expr.Evaluator
	compressor columnar.Compressor
	metrics    *monitoring.EvaluationMetrics
	tracer     *core.Tracer
}

// NewPool creates a pool sized by cfg. Metrics go to registry, or to the
// global registry when it is nil.
func NewPool(id string, cfg *core.Config, registry *monitoring.MetricsRegistry) (*Pool, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = monitoring.GlobalRegistry
	}
	compressor, err := columnar.CompressorFromConfig(cfg.Codec)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.Worker.PoolSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker pool")
	}

	patterns := pattern.NewCacheFromConfig(cfg.Pattern)
	p := &Pool{
		id:         id,
		pool:       pool,
		size:       cfg.Worker.PoolSize,
		batchSize:  cfg.Worker.BatchSize,
		patterns:   patterns,
		evaluator:  expr.NewEvaluator(patterns),
		compressor: compressor,
		metrics:    monitoring.NewEvaluationMetrics(registry),
		tracer:     core.GetTracer(),
	}
	p.tracer.Info(core.TraceComponentWorker, "Initializing worker pool", core.TraceContext(
		"workerID", id,
		"poolSize", p.size,
		"batchSize", p.batchSize,
		"compression", compressor.Type().String(),
	))
	return p, nil
}

// Close releases the pool's goroutines
func (p *Pool) Close() {
	p.pool.Release()
	if z, ok := p.compressor.(*columnar.ZstdCompressor); ok {
		z.Close()
	}
	p.tracer.Info(core.TraceComponentWorker, "Worker pool released", core.TraceContext("workerID", p.id))
}

// run calls task(i) for i in [0, n) on the pool and returns the error of the
// lowest failing index. Tasks not yet started when ctx is done are skipped.
func (p *Pool) run(ctx context.Context, n int, task func(i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = task(i)
		})
		if err != nil {
			wg.Done()
			errs[i] = errors.Wrapf(err, "failed to schedule task %d", i)
			break
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) evaluate(node expr.Node, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	p.metrics.InFlight.Add(1)
	defer p.metrics.InFlight.Add(-1)

	start := time.Now()
	v, err := p.evaluator.Evaluate(node, batch)
	p.metrics.RecordBatch(batch.RowCount, time.Since(start), err)
	return v, err
}

// EvaluateBatches evaluates node against every batch. Result i belongs to
// batches[i]. The first failure (by batch order) is returned.
func (p *Pool) EvaluateBatches(ctx context.Context, node expr.Node, batches []*vectorized.VectorBatch) ([]*vectorized.Vector, error) {
	p.tracer.Debug(core.TraceComponentWorker, "Scheduling batches", core.TraceContext(
		"workerID", p.id,
		"expr", node.String(),
		"batches", len(batches),
	))
	results := make([]*vectorized.Vector, len(batches))
	err := p.run(ctx, len(batches), func(i int) error {
		v, err := p.evaluate(node, batches[i])
		if err != nil {
			return errors.Wrapf(err, "batch %d", i)
		}
		results[i] = v
		return nil
	})
	p.metrics.RecordPatternCache(p.patterns.Stats())
	if err != nil {
		return nil, err
	}
	return results, nil
}

// EvaluateBatch splits a large batch into chunks of the configured batch
// size, evaluates them in parallel and reassembles one result column.
// ALL/ANY sets are taken from the whole batch before it is split.
func (p *Pool) EvaluateBatch(ctx context.Context, node expr.Node, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	if batch.RowCount <= p.batchSize {
		results, err := p.EvaluateBatches(ctx, node, []*vectorized.VectorBatch{batch})
		if err != nil {
			return nil, err
		}
		return results[0], nil
	}

	node, err := p.evaluator.Bind(node, batch)
	if err != nil {
		return nil, err
	}
	chunks, rows := vectorized.SplitBatch(batch, p.batchSize)
	parts, err := p.EvaluateBatches(ctx, node, chunks)
	if err != nil {
		return nil, err
	}
	types := make([]*vectorized.Type, len(parts))
	for i, part := range parts {
		types[i] = part.Type
	}
	t, ok := vectorized.ResolveAll(types...)
	if !ok {
		return nil, errors.Newf("chunks of %s produced incompatible types", node)
	}
	return vectorized.Scatter(t, batch.RowCount, parts, rows)
}

// FilterBatch keeps the rows of batch where predicate is true. The batch is
// filtered in chunks of the configured batch size.
func (p *Pool) FilterBatch(ctx context.Context, predicate expr.Node, batch *vectorized.VectorBatch) (*vectorized.VectorBatch, error) {
	predicate, err := p.evaluator.Bind(predicate, batch)
	if err != nil {
		return nil, err
	}
	chunks, _ := vectorized.SplitBatch(batch, p.batchSize)
	parts, err := p.FilterBatches(ctx, predicate, chunks)
	if err != nil {
		return nil, err
	}
	return vectorized.ConcatBatches(parts...)
}

// FilterBatches keeps the rows of every batch where predicate is true. Each
// batch is evaluated on its own.
func (p *Pool) FilterBatches(ctx context.Context, predicate expr.Node, batches []*vectorized.VectorBatch) ([]*vectorized.VectorBatch, error) {
	results := make([]*vectorized.VectorBatch, len(batches))
	err := p.run(ctx, len(batches), func(i int) error {
		mask, err := p.evaluate(predicate, batches[i])
		if err != nil {
			return errors.Wrapf(err, "batch %d", i)
		}
		if mask.Type.ID != vectorized.BOOLEAN && mask.Type.ID != vectorized.NULL {
			return errors.Newf("batch %d: filter predicate %s is %s, not BOOLEAN", i, predicate, mask.Type)
		}
		filtered, err := batches[i].FilterBatch(mask)
		if err != nil {
			return err
		}
		results[i] = filtered
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Project evaluates several output expressions over one batch concurrently
// and returns them as a batch whose columns are named by the expressions
func (p *Pool) Project(ctx context.Context, batch *vectorized.VectorBatch, nodes ...expr.Node) (*vectorized.VectorBatch, error) {
	columns := make([]*vectorized.Vector, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i, node := range nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := p.evaluate(node, batch)
			if err != nil {
				return err
			}
			columns[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := vectorized.NewVectorBatch(batch.RowCount)
	for i, node := range nodes {
		if err := out.AddColumn(node.String(), columns[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EvaluateEncoded evaluates node against batches shipped in codec form and
// returns the encoded result columns, as a remote worker would
func (p *Pool) EvaluateEncoded(ctx context.Context, node expr.Node, payloads [][]byte) ([][]byte, error) {
	results := make([][]byte, len(payloads))
	err := p.run(ctx, len(payloads), func(i int) error {
		batch, err := columnar.DecodeBatch(payloads[i])
		if err != nil {
			return errors.Wrapf(err, "payload %d", i)
		}
		v, err := p.evaluate(node, batch)
		if err != nil {
			return errors.Wrapf(err, "payload %d", i)
		}
		encoded, err := columnar.EncodeVector(v, p.compressor)
		if err != nil {
			return errors.Wrapf(err, "payload %d", i)
		}
		results[i] = encoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// EncodeBatch encodes a batch with the pool's configured compression
func (p *Pool) EncodeBatch(batch *vectorized.VectorBatch) ([]byte, error) {
	return columnar.EncodeBatch(batch, p.compressor)
}
