package services

import (
	gocontext "context"

	"github.com/alphabatem/common/context"
	"github.com/hocvui-edu/hocvui_api/dto"
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
	log "github.com/sirupsen/logrus"
)

// UpgradeService runs the one compound operation of the identity core:
// converting a guest session into a full account while moving its
// accumulated progress onto the new identity. Every step either completes
// or the transaction aborts with no observable state change; the identity
// created in the commit step is rolled back if anything after it fails.
type UpgradeService struct {
	context.DefaultService

	identitySvc *IdentityService
	sessionSvc  *SessionService
	jwtSvc      *JWTService
}

const UPGRADE_SVC = "upgrade_svc"

func (svc UpgradeService) Id() string {
	return UPGRADE_SVC
}

func (svc *UpgradeService) Configure(ctx *context.Context) error {
	svc.identitySvc = ctx.Service(IDENTITY_SVC).(*IdentityService)
	svc.sessionSvc = ctx.Service(SESSION_SVC).(*SessionService)
	svc.jwtSvc = ctx.Service(JWT_SVC).(*JWTService)
	return svc.DefaultService.Configure(ctx)
}

func (svc *UpgradeService) Start() error {
	return nil
}

type UpgradeResult struct {
	Identity *model.Identity
	Progress *model.IdentityProgress
	Session  *model.Session
}

// Run executes the upgrade for the given slot's active guest session.
func (svc *UpgradeService) Run(ctx gocontext.Context, slot string, req dto.UpgradeRequest) (*UpgradeResult, error) {
	session := svc.sessionSvc.CurrentSession(ctx, slot)
	if session.State != model.SessionGuest {
		upgrades.WithLabelValues("illegal_state").Inc()
		return nil, shared.NewIllegalStateError("upgrade requires an active guest session")
	}

	if err := validateUpgradeRequest(req); err != nil {
		upgrades.WithLabelValues("validation_failed").Inc()
		return nil, err
	}

	// Pre-flight uniqueness check so the common conflict case surfaces as a
	// clean re-prompt; the keyed lock inside Create still decides races.
	for _, identifier := range []string{req.Email, req.MobileNumber} {
		if identifier == "" {
			continue
		}
		if _, err := svc.identitySvc.FindByEmailOrMobile(identifier); err == nil {
			upgrades.WithLabelValues("conflict").Inc()
			return nil, shared.NewConflictError("An account with this identifier already exists")
		} else if !shared.IsKind(err, shared.KindNotFound) {
			return nil, err
		}
	}

	identity, err := svc.identitySvc.Create(model.IdentityDraft{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		Secret:       req.Password,
		Role:         model.RoleUser,
		GradeLevel:   req.GradeLevel,
	})
	if err != nil {
		if shared.IsKind(err, shared.KindConflict) {
			upgrades.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	// From here on the created identity must not outlive a failure.
	progress, err := svc.identitySvc.AttachProgress(identity.ID, session.GuestProgress)
	if err != nil {
		svc.identitySvc.Rollback(identity.ID)
		return nil, err
	}

	newSession, err := svc.sessionSvc.InstallAuthenticatedSession(ctx, slot, identity)
	if err != nil {
		svc.identitySvc.Rollback(identity.ID)
		return nil, err
	}

	upgrades.WithLabelValues("success").Inc()
	log.WithFields(log.Fields{
		"identity_id": identity.ID,
		"points":      progress.Points,
	}).Info("Guest session upgraded to account")

	return &UpgradeResult{
		Identity: identity,
		Progress: progress,
		Session:  newSession,
	}, nil
}

// Upgrade runs the transaction and issues the access token for the new
// authenticated session.
func (svc *UpgradeService) Upgrade(ctx gocontext.Context, slot string, req dto.UpgradeRequest) (*dto.UpgradeResponse, error) {
	result, err := svc.Run(ctx, slot, req)
	if err != nil {
		return nil, err
	}

	pair, err := svc.jwtSvc.GenerateTokenPair(slot, result.Session.Token)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to issue access token")
	}

	return &dto.UpgradeResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		Identity:    *dto.NewIdentityInfo(result.Identity),
		Progress:    dto.NewIdentityProgress(result.Progress),
		Session:     dto.NewSessionResponse(result.Session, result.Identity),
	}, nil
}

// validateUpgradeRequest covers field presence, identifier formats, password
// strength and the exact confirm match. Failures are collected into one
// field map so the UI can annotate the whole form in a single round trip.
func validateUpgradeRequest(req dto.UpgradeRequest) error {
	fields := map[string]string{}

	if !dto.IsNonEmpty(req.FirstName) {
		fields["first_name"] = "first name is required"
	}
	if !dto.IsNonEmpty(req.LastName) {
		fields["last_name"] = "last name is required"
	}
	if req.Email == "" && req.MobileNumber == "" {
		fields["email"] = "at least one of email or mobile number is required"
	}
	if req.Email != "" && !dto.IsValidEmail(req.Email) {
		fields["email"] = "invalid email format"
	}
	if req.MobileNumber != "" && !dto.IsValidVietnamMobile(req.MobileNumber) {
		fields["mobile_number"] = "invalid mobile number format"
	}
	if !dto.IsStrongPassword(req.Password) {
		fields["password"] = "password must be at least 8 characters with uppercase, lowercase and number"
	}
	if req.Password != req.ConfirmPassword {
		fields["confirm_password"] = "passwords do not match"
	}
	if !dto.IsNonEmpty(req.GradeLevel) {
		fields["grade_level"] = "grade level is required"
	} else if !model.IsValidGradeLevel(req.GradeLevel) {
		fields["grade_level"] = "unknown grade level"
	}

	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}
