package worker

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqleval/columnar"
	"sqleval/core"
	"sqleval/distributed/communication"
	"sqleval/expr"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Worker.PoolSize = 2
	p, err := NewPool("svc", cfg, nil)
	require.NoError(t, err)
	s := NewService(p)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func TestServiceEvaluate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	payload, err := s.pool.EncodeBatch(numberBatch(t, 1, nil, 3))
	require.NoError(t, err)
	exprJSON, err := expr.MarshalNode(expr.Binary(expr.OpLike, expr.Binary(expr.OpConcat, expr.Str("n"), expr.Col("n")), expr.Str("n_")))
	require.NoError(t, err)

	resp, err := s.Evaluate(ctx, &communication.EvaluateRequest{
		RequestID: "r1",
		Expr:      exprJSON,
		Payloads:  [][]byte{payload, payload},
	})
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, "svc", resp.WorkerID)
	require.Len(t, resp.Results, 2)
	v, err := columnar.DecodeVector(resp.Results[1])
	require.NoError(t, err)
	assert.Equal(t, []interface{}{true, nil, true}, v.Values())
	assert.Equal(t, int64(2*len(payload)), resp.Stats.BytesIn)
	assert.Positive(t, resp.Stats.BytesOut)

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "active", status.Status)
	assert.Equal(t, 2, status.PoolSize)
	assert.Equal(t, 0, status.ActiveRequests)
	assert.Positive(t, status.CacheHits+status.CacheMisses)
}

func TestServiceEncodesEvaluationErrors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	payload, err := s.pool.EncodeBatch(numberBatch(t, 1, 0))
	require.NoError(t, err)
	exprJSON, err := expr.MarshalNode(expr.Binary(expr.OpModulo, expr.Int(7), expr.Col("n")))
	require.NoError(t, err)

	resp, err := s.Evaluate(ctx, &communication.EvaluateRequest{Expr: exprJSON, Payloads: [][]byte{payload}})
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Empty(t, resp.Results)
	decoded := errors.DecodeError(ctx, *resp.Error)
	assert.True(t, errors.Is(decoded, expr.ErrArithmetic), decoded.Error())

	resp, err = s.Evaluate(ctx, &communication.EvaluateRequest{Expr: []byte(`{"frobnicate": 1}`)})
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.True(t, errors.Is(errors.DecodeError(ctx, *resp.Error), expr.ErrMalformed))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Evaluate(cancelled, &communication.EvaluateRequest{Expr: exprJSON, Payloads: [][]byte{payload}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceShutdown(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Health(ctx))

	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))
	assert.Error(t, s.Health(ctx))
	_, err := s.Evaluate(ctx, &communication.EvaluateRequest{})
	assert.Error(t, err)

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shutdown", status.Status)
}
