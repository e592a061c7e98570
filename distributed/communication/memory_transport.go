package communication

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrWorkerUnavailable marks requests that could not reach a worker
var ErrWorkerUnavailable = errors.New("worker unavailable")

// MemoryTransport implements Transport in-process. Requests are handed to
// the service directly; payloads are shared, not copied.
type MemoryTransport struct {
	workers map[string]WorkerService
	mutex   sync.RWMutex
}

// NewMemoryTransport creates a new in-memory transport
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		workers: make(map[string]WorkerService),
	}
}

// NewWorkerClient creates a client to communicate with worker
func (mt *MemoryTransport) NewWorkerClient(address string) (WorkerClient, error) {
	mt.mutex.RLock()
	service, exists := mt.workers[address]
	mt.mutex.RUnlock()

	if !exists {
		return nil, errors.Mark(errors.Newf("worker not found at address: %s", address), ErrWorkerUnavailable)
	}

	return &MemoryWorkerClient{
		service:   service,
		address:   address,
		transport: mt,
	}, nil
}

// StartWorkerServer starts a worker server
func (mt *MemoryTransport) StartWorkerServer(address string, service WorkerService) error {
	mt.mutex.Lock()
	defer mt.mutex.Unlock()

	if _, exists := mt.workers[address]; exists {
		return errors.Newf("worker already running at address: %s", address)
	}

	mt.workers[address] = service
	return nil
}

// StopWorkerServer removes the worker at address. Clients already
// connected to it fail from then on.
func (mt *MemoryTransport) StopWorkerServer(address string) {
	mt.mutex.Lock()
	defer mt.mutex.Unlock()
	delete(mt.workers, address)
}

// Stop clears the registrations. Services are shut down by their owners.
func (mt *MemoryTransport) Stop() error {
	mt.mutex.Lock()
	defer mt.mutex.Unlock()
	mt.workers = make(map[string]WorkerService)
	return nil
}

// ListWorkers returns all worker addresses in order
func (mt *MemoryTransport) ListWorkers() []string {
	mt.mutex.RLock()
	defer mt.mutex.RUnlock()

	addresses := make([]string, 0, len(mt.workers))
	for addr := range mt.workers {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return addresses
}

func (mt *MemoryTransport) lookup(address string) (WorkerService, error) {
	mt.mutex.RLock()
	defer mt.mutex.RUnlock()
	service, ok := mt.workers[address]
	if !ok {
		return nil, errors.Mark(errors.Newf("worker at %s is no longer running", address), ErrWorkerUnavailable)
	}
	return service, nil
}

// MemoryWorkerClient implements WorkerClient for in-memory communication
type MemoryWorkerClient struct {
	service   WorkerService
	address   string
	transport *MemoryTransport
	closed    bool
	mutex     sync.Mutex
}

func (mwc *MemoryWorkerClient) connected() (WorkerService, error) {
	mwc.mutex.Lock()
	closed := mwc.closed
	mwc.mutex.Unlock()
	if closed {
		return nil, errors.Mark(errors.Newf("client for %s is closed", mwc.address), ErrWorkerUnavailable)
	}
	service, err := mwc.transport.lookup(mwc.address)
	if err != nil {
		return nil, err
	}
	if service != mwc.service {
		return nil, errors.Mark(errors.Newf("worker at %s was replaced", mwc.address), ErrWorkerUnavailable)
	}
	return service, nil
}

// Evaluate sends an evaluation request to the worker
func (mwc *MemoryWorkerClient) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	service, err := mwc.connected()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return service.Evaluate(ctx, req)
}

// GetStatus gets worker status
func (mwc *MemoryWorkerClient) GetStatus(ctx context.Context) (*WorkerStatus, error) {
	service, err := mwc.connected()
	if err != nil {
		return nil, err
	}
	return service.GetStatus(ctx)
}

// Health checks worker health
func (mwc *MemoryWorkerClient) Health(ctx context.Context) error {
	service, err := mwc.connected()
	if err != nil {
		return err
	}
	return service.Health(ctx)
}

// Close closes the client connection
func (mwc *MemoryWorkerClient) Close() error {
	mwc.mutex.Lock()
	defer mwc.mutex.Unlock()
	mwc.closed = true
	return nil
}
