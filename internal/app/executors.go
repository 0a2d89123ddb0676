package app

import (
	"net/http"
	"time"

	"github.com/marcelsud/webhook-flow/config"
	"github.com/marcelsud/webhook-flow/worker"
	"github.com/marcelsud/webhook-flow/worker/executor"
)

func collaboratorClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.GetJobTimeout() + 5*time.Second}
}

func registerExecutors(e *worker.Executors, cfg *config.Config) {
	executor.Register(e, executor.URLs{
		Agent:   cfg.AgentURL,
		Message: cfg.MessageURL,
		Email:   cfg.EmailURL,
	}, collaboratorClient(cfg))
}

// notifier is nil without a messaging collaborator, failures are then only logged
func notifier(cfg *config.Config) worker.Notifier {
	if cfg.MessageURL == "" {
		return nil
	}
	return executor.NewServiceNotifier(cfg.MessageURL, "", collaboratorClient(cfg))
}
