package usecase

import (
	"context"

	domainSession "github.com/AzielCF/az-flow/domains/session"
	"github.com/AzielCF/az-flow/domains/tenant"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/AzielCF/az-flow/validations"
	"github.com/sirupsen/logrus"
)

type handoffService struct {
	tenants  tenant.ITenantRepository
	sessions domainSession.ISessionStore
}

func NewHandoffService(tenants tenant.ITenantRepository, sessions domainSession.ISessionStore) domainSession.IHandoffUsecase {
	return &handoffService{tenants: tenants, sessions: sessions}
}

// SetBotActive moves a conversation between BOT_ACTIVE and HUMAN_ACTIVE.
// A bare phone number is accepted and expanded to a user JID.
func (s *handoffService) SetBotActive(ctx context.Context, tenantID string, req domainSession.HandoffRequest) (domainSession.ChatSession, error) {
	if err := validations.ValidateTenantID(tenantID); err != nil {
		return domainSession.ChatSession{}, err
	}
	if err := validations.ValidateHandoff(ctx, req); err != nil {
		return domainSession.ChatSession{}, err
	}

	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return domainSession.ChatSession{}, notFoundOr(err, "tenant "+tenantID)
	}

	jid := utils.ToUserJID(req.RemoteJid)
	if utils.IsGroupJID(jid) {
		return domainSession.ChatSession{}, pkgError.ValidationError("group conversations are not handled by the bot")
	}

	sess, err := s.sessions.SetBotActive(ctx, tenantID, jid, *req.BotActive)
	if err != nil {
		return domainSession.ChatSession{}, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant": tenantID,
		"jid":    jid,
		"state":  sess.State(),
	}).Info("[SESSION] handoff applied")
	return sess, nil
}
