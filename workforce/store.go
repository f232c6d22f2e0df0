/*
store.go - Persistence ports for the deployment engine

PURPOSE:
  Defines the interface between the engine and whatever stores the
  collections. The engine never talks to a database directly: the Service
  reads full snapshots through Reader and applies single-record writes
  through Writer.

KEY INTERFACES:
  Reader:  full-collection reads (operatives, sites, assignments, clients)
  Writer:  single-record mutations performed after checks pass or are forced
  Catalog: master-data writes used by the API and scenario loader

IMPLEMENTATIONS:
  - store/memory: in-memory, for tests and the CLI
  - store/sqlite: SQLite via database/sql
  - store/mongo:  MongoDB via the official driver

SEE ALSO:
  - service.go: the only caller of these interfaces inside the engine
*/
package workforce

import "context"

// Reader returns whole collections. Dates in returned records are already
// parsed; unparsable stored dates come back as zero TimePoints.
type Reader interface {
	ListOperatives(ctx context.Context) ([]Operative, error)
	ListSites(ctx context.Context) ([]Site, error)
	ListAssignments(ctx context.Context) ([]Assignment, error)
	ListClients(ctx context.Context) ([]Client, error)
}

// Writer applies one record change per call.
type Writer interface {
	CreateAssignment(ctx context.Context, a Assignment) error
	// UpdateAssignmentStatus returns ErrAssignmentNotFound for unknown ids.
	UpdateAssignmentStatus(ctx context.Context, id AssignmentID, status AssignmentStatus) error
	// DeleteAssignment returns ErrAssignmentNotFound for unknown ids.
	DeleteAssignment(ctx context.Context, id AssignmentID) error
	// UpsertCertificates replaces the operative's certificate list.
	UpsertCertificates(ctx context.Context, operativeID OperativeID, certs []Certificate) error
	UpsertRestriction(ctx context.Context, operativeID OperativeID, r Restriction) error
}

// Catalog maintains master data.
type Catalog interface {
	SaveOperative(ctx context.Context, o Operative) error
	SaveSite(ctx context.Context, s Site) error
	SaveClient(ctx context.Context, c Client) error
	// Reset removes every record. Development and scenarios only.
	Reset(ctx context.Context) error
}

// Store is everything the Service and API need.
type Store interface {
	Reader
	Writer
	Catalog
}

// LoadSnapshot reads all four collections.
func LoadSnapshot(ctx context.Context, r Reader) (Snapshot, error) {
	ops, err := r.ListOperatives(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	sites, err := r.ListSites(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	assignments, err := r.ListAssignments(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	clients, err := r.ListClients(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Operatives: ops, Sites: sites, Assignments: assignments, Clients: clients}, nil
}
