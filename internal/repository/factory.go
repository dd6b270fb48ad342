package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	Share ShareRepository
	Usage UsageRepository
}

// DatabaseHealth is an interface for database health checks.
// The router uses it for the /health endpoint.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
