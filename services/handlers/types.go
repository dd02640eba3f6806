package handlers

import (
	"context"

	"github.com/hocvui-edu/hocvui_api/dto"
	"github.com/hocvui-edu/hocvui_api/model"
)

type SessionServiceInterface interface {
	CurrentSession(ctx context.Context, slot string) *model.Session
	StartGuestSession(ctx context.Context, slot string, hints model.GuestHints) (*model.Session, error)
	RecordGuestActivity(ctx context.Context, slot string, update model.ProgressUpdate) (*model.Session, error)
	Login(ctx context.Context, slot, identifier, secret string) (*model.Session, error)
	Logout(ctx context.Context, slot string)
	AbandonGuestSession(ctx context.Context, slot string) error
}

type IdentityServiceInterface interface {
	Get(id string) (*model.Identity, error)
	GetProgress(identityID string) (*model.IdentityProgress, error)
	List(limit int) ([]model.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type UpgradeServiceInterface interface {
	Upgrade(ctx context.Context, slot string, req dto.UpgradeRequest) (*dto.UpgradeResponse, error)
}

type JWTServiceInterface interface {
	GenerateTokenPair(slot, sessionToken string) (*dto.TokenPair, error)
}
