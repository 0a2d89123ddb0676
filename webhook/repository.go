package webhook

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a registration does not exist
var ErrNotFound = errors.New("registration not found")

// Reader provides read operations for registrations
type Reader interface {
	GetRegistration(ctx context.Context, id string) (Registration, error)
	ListRegistrations(ctx context.Context, tenantID string) ([]Registration, error)
}

// Writer provides write operations for registrations
type Writer interface {
	// SaveRegistration upserts by id and keeps LastTriggeredAt of an existing row
	SaveRegistration(ctx context.Context, r Registration) error
	UpdateLastTriggeredAt(ctx context.Context, id string, at time.Time) error
	SetRegistrationStatus(ctx context.Context, id string, status RegistrationStatus) error
	// DeactivateWorkflow marks every registration of a workflow inactive
	DeactivateWorkflow(ctx context.Context, workflowID string) error
}

// RegistrationStore combines registration reads and writes
type RegistrationStore interface {
	Reader
	Writer
}
