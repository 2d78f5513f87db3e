package state

import (
	"context"
	"io"

	"github.com/ShayCichocki/switchboard/internal/convo"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// EndpointStore persists endpoints registered at runtime.
type EndpointStore interface {
	SaveEndpoint(ctx context.Context, e models.Endpoint) error
	DeleteEndpoint(ctx context.Context, capabilityID string) error
	ListEndpoints(ctx context.Context) ([]models.Endpoint, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store composes everything the SQLite backend provides.
type Store interface {
	io.Closer
	Migrator
	convo.Journal
	EndpointStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ convo.Journal = (*DB)(nil)
	_ EndpointStore = (*DB)(nil)
)
