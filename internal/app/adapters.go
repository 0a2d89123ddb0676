package app

import (
	"github.com/marcelsud/webhook-flow/webhook"
	"github.com/marcelsud/webhook-flow/webhook/provider/meta"
	"github.com/marcelsud/webhook-flow/webhook/provider/slack"
	"github.com/marcelsud/webhook-flow/webhook/provider/standard"
)

// Adapters registers every supported provider; the Meta products share one adapter under their own ids
func Adapters(metaVerifyToken string) *webhook.Registry {
	return webhook.NewRegistry(
		meta.New(metaVerifyToken),
		meta.NewAlias("facebook", metaVerifyToken),
		meta.NewAlias("instagram", metaVerifyToken),
		meta.NewAlias("whatsapp", metaVerifyToken),
		slack.New(),
		standard.New(),
	)
}

// Webhooks creates the ingestion service over the App's stores
func (a *App) Webhooks(adapters *webhook.Registry) *webhook.Service {
	return webhook.NewService(adapters, a.Registrations, a.Trigger, a.Logger)
}
