package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-flow/webhook"
)

const maxBodyBytes = 1 << 20

// acceptedResponse is returned before any downstream work happens
type acceptedResponse struct {
	Status      string `json:"status"`
	ExecutionID string `json:"execution_id"`
}

/* handleWebhook serves GET and POST /webhooks/{tenantId}/{provider}/{workflowId}
 * Verification handshakes are answered inline; deliveries are checked against the
 * tenant's secret and handed to the ingestion service, which continues in the background
 */
func handleWebhook(service webhook.UseCase, adapters *webhook.Registry, secrets SecretSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(chi.URLParam(r, "tenantId"))
		provider := strings.TrimSpace(chi.URLParam(r, "provider"))
		workflowID := strings.TrimSpace(chi.URLParam(r, "workflowId"))
		if tenantID == "" || provider == "" || workflowID == "" {
			http.Error(w, "tenantId, provider and workflowId are required", http.StatusBadRequest)
			return
		}

		adapter, err := adapters.Get(provider)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		challenge := adapter.HandleChallenge(r.URL.Query(), body, r.Header)
		if challenge.IsChallenge {
			if challenge.Denied {
				http.Error(w, "verification token mismatch", http.StatusForbidden)
				return
			}
			contentType := challenge.ContentType
			if contentType == "" {
				contentType = "text/plain"
			}
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(challenge.Response))
			return
		}
		if r.Method == http.MethodGet {
			http.Error(w, "not a verification request", http.StatusBadRequest)
			return
		}

		if secrets != nil {
			if secret, ok := secrets.SecretFor(tenantID, adapter.Provider()); ok && !adapter.VerifySignature(body, r.Header, secret) {
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}
		}

		accepted, err := service.Accept(r.Context(), webhook.Delivery{
			TenantID:   tenantID,
			Provider:   provider,
			WorkflowID: workflowID,
			Body:       body,
			Headers:    r.Header.Clone(),
		})
		if errors.Is(err, webhook.ErrUnknownProvider) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(acceptedResponse{
			Status:      "accepted",
			ExecutionID: accepted.ExecutionID,
		})
	})
}
