package webhook

import "context"

// Outcome tells how far one webhook delivery got. It is logged, never returned to the provider.
type Outcome string

const (
	OutcomeProcessed         Outcome = "processed"
	OutcomeHumanActive       Outcome = "human_active"
	OutcomeUnknownTenant     Outcome = "ignored_unknown_tenant"
	OutcomeAuthFailed        Outcome = "ignored_auth"
	OutcomeConfigIncomplete  Outcome = "ignored_config"
	OutcomeIgnoredPayload    Outcome = "ignored_payload"
	OutcomeIgnoredGroup      Outcome = "ignored_group"
	OutcomeIgnoredSelfEcho   Outcome = "ignored_self"
	OutcomeEngineFailed      Outcome = "engine_failed"
	OutcomePersistenceFailed Outcome = "persistence_failed"
	OutcomeInternalFailure   Outcome = "internal_failure"
)

type IWebhookUsecase interface {
	Process(ctx context.Context, tenantID, rawToken string, body []byte) Outcome
}
