// internal/medication/store.go
package medication

import "context"

// ChangeKind distinguishes change-feed events.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is published on every store write so the scheduler can
// rebuild its timer table without polling.
type ChangeEvent struct {
	Kind         ChangeKind  `json:"kind"`
	MedicationID string      `json:"medicationId"`
	UserID       string      `json:"userId"`
	Medication   *Medication `json:"medication,omitempty"`
}

// Store is the durable source of truth for medication records. In-memory
// reminder timers are a rebuildable cache derived from it.
type Store interface {
	GetMedication(ctx context.Context, id string) (*Medication, error)
	ListActiveMedications(ctx context.Context, userID string) ([]Medication, error)
	ListAllActive(ctx context.Context) ([]Medication, error)
	Upsert(ctx context.Context, med *Medication) error
	Delete(ctx context.Context, id string) error
}

// Feed is the push-based change feed consumed by the scheduler service.
type Feed interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}
