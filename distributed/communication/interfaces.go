package communication

import "context"

// WorkerService defines the interface for worker operations
type WorkerService interface {
	// Evaluate runs one expression over the request payloads
	Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error)

	// GetStatus returns the current worker status
	GetStatus(ctx context.Context) (*WorkerStatus, error)

	// Health check for the worker
	Health(ctx context.Context) error

	// Shutdown gracefully shuts down the worker
	Shutdown(ctx context.Context) error
}

// WorkerClient defines the interface for the coordinator to communicate with workers
type WorkerClient interface {
	Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error)
	GetStatus(ctx context.Context) (*WorkerStatus, error)
	Health(ctx context.Context) error

	// Close closes the client connection
	Close() error
}

// Transport connects coordinators to workers
type Transport interface {
	NewWorkerClient(address string) (WorkerClient, error)
	StartWorkerServer(address string, service WorkerService) error
	Stop() error
}
