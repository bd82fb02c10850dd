package app

import (
	"context"
	"strings"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	"topli_chat/pkg/encrypt"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"go.uber.org/zap"
)

// InviteUseCase 邀請連結
type InviteUseCase struct {
	inviteRepo repository.InviteRepository
	roomRepo   repository.RoomRepository
	baseURL    string
	now        func() time.Time
}

// NewInviteUseCase init invite use case
func NewInviteUseCase(i repository.InviteRepository, r repository.RoomRepository, baseURL string) *InviteUseCase {
	return &InviteUseCase{
		inviteRepo: i,
		roomRepo:   r,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// Create invite link for a room; returns the invite and its login link
func (uc *InviteUseCase) Create(ctx context.Context, callerID string, role token.RoleType, roomID string) (*domain.Invite, string, error) {
	if callerID == "" {
		return nil, "", errprocess.Wrap(domain.ErrUnauthorized, "create invite without caller")
	}
	if !role.Can(token.PermCreateRoom) {
		return nil, "", errprocess.Wrap(domain.ErrForbidden, "role cannot invite", zap.String("role", string(role)))
	}
	if roomID == "" {
		return nil, "", errprocess.Wrap(domain.ErrInvalidArgument, "roomId is required")
	}

	if _, err := uc.roomRepo.FindByID(ctx, roomID); err != nil {
		return nil, "", err
	}

	id, err := encrypt.GenerateToken(16)
	if err != nil {
		return nil, "", err
	}

	now := uc.now().UTC()
	inv := &domain.Invite{
		ID:        id,
		RoomID:    roomID,
		CreatedBy: callerID,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.InviteTTL),
	}
	if err := uc.inviteRepo.Create(ctx, inv); err != nil {
		return nil, "", err
	}

	return inv, uc.Link(inv.ID), nil
}

// Link login URL carrying the invite id
func (uc *InviteUseCase) Link(inviteID string) string {
	return uc.baseURL + "/login?inviteId=" + inviteID
}

// Apply join the caller to the invited room; an invite is single use
func (uc *InviteUseCase) Apply(ctx context.Context, callerID, inviteID string) (string, error) {
	if callerID == "" {
		return "", errprocess.Wrap(domain.ErrUnauthorized, "apply invite without caller")
	}
	if inviteID == "" {
		return "", errprocess.Wrap(domain.ErrInvalidArgument, "inviteId is required")
	}

	inv, err := uc.inviteRepo.FindByID(ctx, inviteID)
	if err != nil {
		return "", err
	}
	if inv.Used {
		return "", errprocess.Wrap(domain.ErrConflict, "invite already used", zap.String("invite_id", inviteID))
	}

	now := uc.now().UTC()
	if inv.Expired(now) {
		return "", errprocess.Wrap(domain.ErrConflict, "invite expired", zap.String("invite_id", inviteID))
	}

	if err := uc.inviteRepo.MarkUsed(ctx, inviteID, callerID, now); err != nil {
		return "", err
	}
	if err := uc.roomRepo.AddParticipant(ctx, inv.RoomID, callerID); err != nil {
		return "", err
	}

	logger.Log.Info("invite applied", zap.String("invite_id", inviteID), zap.String("room_id", inv.RoomID), zap.String("uid", callerID))
	return inv.RoomID, nil
}
