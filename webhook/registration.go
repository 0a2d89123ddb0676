package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// registrationNamespace seeds the v5 ids of registrations
var registrationNamespace = uuid.MustParse("0b7f4a3e-5f0c-4d8e-9a57-3c2e1d6b8f41")

/* Registration binds a tenant's provider webhook to the trigger node of a workflow
 * The id is derived from tenant, provider and workflow, so every inbound call can find it without a lookup table
 */
type Registration struct {
	ID              string
	TenantID        string
	Provider        string
	WorkflowID      string
	NodeID          string
	Status          RegistrationStatus
	LastTriggeredAt time.Time
	CreatedAt       time.Time
}

// RegistrationID derives the deterministic id for a tenant/provider/workflow triple
func RegistrationID(tenantID, provider, workflowID string) string {
	key := strings.Join([]string{tenantID, strings.ToLower(provider), workflowID}, "/")
	return uuid.NewSHA1(registrationNamespace, []byte(key)).String()
}

// NewRegistration builds an active registration with its derived id
func NewRegistration(tenantID, provider, workflowID, nodeID string) (Registration, error) {
	r := Registration{
		TenantID:   strings.TrimSpace(tenantID),
		Provider:   strings.ToLower(strings.TrimSpace(provider)),
		WorkflowID: strings.TrimSpace(workflowID),
		NodeID:     strings.TrimSpace(nodeID),
		Status:     RegistrationActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return Registration{}, err
	}
	r.ID = RegistrationID(r.TenantID, r.Provider, r.WorkflowID)
	return r, nil
}

// Validate checks the required fields
func (r Registration) Validate() error {
	switch {
	case r.TenantID == "":
		return fmt.Errorf("tenant id is required")
	case r.Provider == "":
		return fmt.Errorf("provider is required")
	case r.WorkflowID == "":
		return fmt.Errorf("workflow id is required")
	case r.NodeID == "":
		return fmt.Errorf("target node id is required")
	}
	return r.Status.Validate()
}

/* RegistrationStatus follows the lifecycle: Active <-> Inactive, Active -> Error
 * Only Active registrations start executions
 */
type RegistrationStatus int

const (
	RegistrationActive RegistrationStatus = iota + 1
	RegistrationInactive
	RegistrationError
)

// String returns the string representation of the status
func (s RegistrationStatus) String() string {
	switch s {
	case RegistrationActive:
		return "active"
	case RegistrationInactive:
		return "inactive"
	case RegistrationError:
		return "error"
	default:
		return "unknown"
	}
}

// NewRegistrationStatus creates a RegistrationStatus from a string
func NewRegistrationStatus(str string) RegistrationStatus {
	switch str {
	case "inactive":
		return RegistrationInactive
	case "error":
		return RegistrationError
	default:
		return RegistrationActive
	}
}

// Validate checks if the status is valid
func (s RegistrationStatus) Validate() error {
	if s < RegistrationActive || s > RegistrationError {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}
