package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-flow/trigger"
)

/* Service represents the ingestion business logic
 * Uses pointer semantics as it's an API, not data
 */

// executionNamespace seeds execution ids derived from provider delivery ids
var executionNamespace = uuid.MustParse("6a1d2c90-8e4b-4f7a-b3d5-0e9c7f21a6b4")

const processTimeout = 30 * time.Second

// Starter starts executions; implemented by trigger.Service
type Starter interface {
	Start(ctx context.Context, req trigger.Request) (trigger.Result, error)
}

// Delivery is one authenticated inbound call
type Delivery struct {
	TenantID   string
	Provider   string
	WorkflowID string
	Body       []byte
	Headers    http.Header
}

// Accepted is returned to the caller before any downstream work happens
type Accepted struct {
	ExecutionID string
	EventType   string
}

// UseCase defines the ingestion operations
type UseCase interface {
	// Accept normalizes the delivery and processes it in the background
	Accept(ctx context.Context, d Delivery) (Accepted, error)
	Register(ctx context.Context, tenantID, provider, workflowID, nodeID string) (Registration, error)
	Deactivate(ctx context.Context, workflowID string) error
}

type Service struct {
	Registry *Registry
	Store    RegistrationStore
	Starter  Starter
	logger   *slog.Logger
	now      func() time.Time
	inflight sync.WaitGroup
}

// NewService creates a new ingestion service with dependency injection
func NewService(registry *Registry, store RegistrationStore, starter Starter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Registry: registry,
		Store:    store,
		Starter:  starter,
		logger:   logger,
		now:      time.Now,
	}
}

/* Accept returns as soon as the execution id is known
 * Registration lookup, last-triggered bookkeeping and dispatch run in a tracked goroutine,
 * so their failures are logged and never reach the caller that is waiting for its ack
 */
func (s *Service) Accept(ctx context.Context, d Delivery) (Accepted, error) {
	adapter, err := s.Registry.Get(d.Provider)
	if err != nil {
		return Accepted{}, err
	}
	event := adapter.Normalize(d.Body, d.Headers, d.TenantID)
	execID := ExecutionID(RegistrationID(d.TenantID, adapter.Provider(), d.WorkflowID), event.ID)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
		defer cancel()
		if err := s.Process(pctx, d, event, execID); err != nil {
			s.logger.Error("processing webhook",
				"tenant_id", d.TenantID,
				"provider", d.Provider,
				"workflow_id", d.WorkflowID,
				"execution_id", execID,
				"error", err,
			)
		}
	}()

	return Accepted{ExecutionID: execID, EventType: event.Type}, nil
}

// Process resolves the registration and starts the execution
func (s *Service) Process(ctx context.Context, d Delivery, event Event, execID string) error {
	regID := RegistrationID(d.TenantID, event.Provider, d.WorkflowID)
	reg, err := s.Store.GetRegistration(ctx, regID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("webhook without registration",
				"registration_id", regID,
				"tenant_id", d.TenantID,
				"workflow_id", d.WorkflowID,
			)
			return nil
		}
		return fmt.Errorf("getting registration: %w", err)
	}
	if reg.Status != RegistrationActive {
		s.logger.Info("ignoring webhook for non active registration",
			"registration_id", reg.ID, "status", reg.Status.String())
		return nil
	}

	if err := s.Store.UpdateLastTriggeredAt(ctx, reg.ID, s.now().UTC()); err != nil {
		// bookkeeping only; the event still runs
		s.logger.Warn("updating last triggered", "registration_id", reg.ID, "error", err)
	}

	metadata := map[string]string{
		"provider":        event.Provider,
		"registration_id": reg.ID,
	}
	if event.ID != "" {
		metadata["delivery_id"] = event.ID
	}
	if event.CustomerID != "" {
		metadata["customer_id"] = event.CustomerID
	}
	res, err := s.Starter.Start(ctx, trigger.Request{
		ExecutionID: execID,
		TenantID:    reg.TenantID,
		WorkflowID:  reg.WorkflowID,
		NodeID:      reg.NodeID,
		Source:      trigger.SourceWebhook,
		EventType:   event.Type,
		Input:       event.Input(),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("starting execution: %w", err)
	}
	if res.Duplicate {
		s.logger.Info("duplicate webhook delivery", "execution_id", execID, "delivery_id", event.ID)
	}
	return nil
}

// Register creates or reactivates the registration of a workflow trigger node
func (s *Service) Register(ctx context.Context, tenantID, provider, workflowID, nodeID string) (Registration, error) {
	if _, err := s.Registry.Get(provider); err != nil {
		return Registration{}, err
	}
	reg, err := NewRegistration(tenantID, provider, workflowID, nodeID)
	if err != nil {
		return Registration{}, fmt.Errorf("validating registration: %w", err)
	}
	if err := s.Store.SaveRegistration(ctx, reg); err != nil {
		return Registration{}, fmt.Errorf("saving registration: %w", err)
	}
	return reg, nil
}

// Deactivate stops new webhook triggers of a workflow; in-flight executions are unaffected
func (s *Service) Deactivate(ctx context.Context, workflowID string) error {
	if err := s.Store.DeactivateWorkflow(ctx, workflowID); err != nil {
		return fmt.Errorf("deactivating registrations: %w", err)
	}
	return nil
}

// Wait blocks until background processing finishes or ctx is done
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

/* ExecutionID derives the execution id of a delivery
 * Redeliveries of the same provider event map to the same execution; events without an id get a random one
 */
func ExecutionID(registrationID, deliveryID string) string {
	if deliveryID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(executionNamespace, []byte(registrationID+"/"+deliveryID)).String()
}
