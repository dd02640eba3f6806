package services

import (
	gocontext "context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/services/repositories"
	"github.com/hocvui-edu/hocvui_api/shared"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// IdentityRepository is the persistence port of the identity store. The
// gorm-backed repositories.IdentityRepository satisfies it in production.
type IdentityRepository interface {
	GetByID(id string) (*model.Identity, error)
	GetByIdentifier(identifier string) (*model.Identity, error)
	Create(identity *model.Identity) error
	Save(identity *model.Identity) error
	Delete(id string) error
	List(limit int) ([]model.Identity, error)
	CreateProgress(progress *model.IdentityProgress) error
	GetProgress(identityID string) (*model.IdentityProgress, error)
	DeleteProgress(identityID string) error
}

// resetCodeStore is the slice of redis the password-reset flow needs.
type resetCodeStore interface {
	Set(ctx gocontext.Context, key string, value string, expiration time.Duration) error
	Get(ctx gocontext.Context, key string) (string, error)
	Delete(ctx gocontext.Context, keys ...string) error
	Exists(ctx gocontext.Context, key string) (bool, error)
}

// IdentityService is the authoritative store of accounts. All mutations on a
// given email/mobile run through a keyed single-writer section, so two
// racing creates on one identifier yield exactly one success and one
// conflict.
type IdentityService struct {
	context.DefaultService

	sqlSvc *PostgresService

	repo  IdentityRepository
	codes resetCodeStore
	keys  *keyedMutex
}

const IDENTITY_SVC = "identity_svc"

const passwordResetTTL = 15 * time.Minute

func (svc IdentityService) Id() string {
	return IDENTITY_SVC
}

func (svc *IdentityService) Configure(ctx *context.Context) error {
	svc.sqlSvc = ctx.Service(POSTGRES_SVC).(*PostgresService)
	svc.codes = ctx.Service(REDIS_SVC).(*RedisService)
	svc.keys = newKeyedMutex()
	return svc.DefaultService.Configure(ctx)
}

func (svc *IdentityService) Start() error {
	svc.repo = repositories.NewIdentityRepository(svc.sqlSvc.Db())
	return nil
}

// FindByEmailOrMobile resolves an identifier of either kind.
func (svc *IdentityService) FindByEmailOrMobile(identifier string) (*model.Identity, error) {
	identity, err := svc.repo.GetByIdentifier(normalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, shared.NewNotFoundError("Account not found")
		}
		return nil, shared.NewInternalError(err, "Failed to look up account")
	}
	return identity, nil
}

func (svc *IdentityService) Get(id string) (*model.Identity, error) {
	identity, err := svc.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, shared.NewNotFoundError("Account not found")
		}
		return nil, shared.NewInternalError(err, "Failed to look up account")
	}
	return identity, nil
}

// Create inserts a new non-guest identity. The draft must carry at least one
// identifier; both supplied identifiers are locked for the duration of the
// uniqueness check plus insert.
func (svc *IdentityService) Create(draft model.IdentityDraft) (*model.Identity, error) {
	email := normalizeIdentifier(draft.Email)
	mobile := strings.TrimSpace(draft.MobileNumber)

	if email == "" && mobile == "" {
		return nil, shared.NewFieldError("email", "at least one of email or mobile number is required")
	}

	unlock := svc.keys.Lock(identifierKeys(email, mobile)...)
	defer unlock()

	for _, identifier := range []string{email, mobile} {
		if identifier == "" {
			continue
		}
		if _, err := svc.repo.GetByIdentifier(identifier); err == nil {
			return nil, shared.NewConflictError("An account with this identifier already exists")
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return nil, shared.NewInternalError(err, "Failed to check identifier availability")
		}
	}

	hash, err := hashSecret(draft.Secret)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to hash credential")
	}

	id, _ := uuid.NewV7()
	now := time.Now()
	identity := &model.Identity{
		ID:             id.String(),
		FirstName:      strings.TrimSpace(draft.FirstName),
		LastName:       strings.TrimSpace(draft.LastName),
		Email:          email,
		MobileNumber:   mobile,
		CredentialHash: hash,
		Role:           draft.Role,
		GradeLevel:     draft.GradeLevel,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if identity.Role == "" {
		identity.Role = model.RoleUser
	}

	if err := svc.repo.Create(identity); err != nil {
		return nil, shared.NewInternalError(err, "Failed to create account")
	}

	return identity, nil
}

// Update applies a partial patch under the same keyed lock discipline as
// Create. Changing an identifier to one held by a different identity fails
// with a conflict and leaves the record untouched.
func (svc *IdentityService) Update(id string, patch model.IdentityPatch) (*model.Identity, error) {
	var lockKeys []string
	if patch.Email != nil {
		lockKeys = append(lockKeys, normalizeIdentifier(*patch.Email))
	}
	if patch.MobileNumber != nil {
		lockKeys = append(lockKeys, strings.TrimSpace(*patch.MobileNumber))
	}
	unlock := svc.keys.Lock(identifierKeys(lockKeys...)...)
	defer unlock()

	identity, err := svc.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, shared.NewNotFoundError("Account not found")
		}
		return nil, shared.NewInternalError(err, "Failed to look up account")
	}

	if patch.Email != nil {
		email := normalizeIdentifier(*patch.Email)
		if email != identity.Email {
			if other, err := svc.repo.GetByIdentifier(email); err == nil && other.ID != id {
				return nil, shared.NewConflictError("Email is already in use")
			} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return nil, shared.NewInternalError(err, "Failed to check email availability")
			}
			identity.Email = email
		}
	}

	if patch.MobileNumber != nil {
		mobile := strings.TrimSpace(*patch.MobileNumber)
		if mobile != identity.MobileNumber {
			if other, err := svc.repo.GetByIdentifier(mobile); err == nil && other.ID != id {
				return nil, shared.NewConflictError("Mobile number is already in use")
			} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return nil, shared.NewInternalError(err, "Failed to check mobile availability")
			}
			identity.MobileNumber = mobile
		}
	}

	if patch.Secret != nil {
		hash, err := hashSecret(*patch.Secret)
		if err != nil {
			return nil, shared.NewInternalError(err, "Failed to hash credential")
		}
		identity.CredentialHash = hash
	}

	if patch.GradeLevel != nil {
		identity.GradeLevel = *patch.GradeLevel
	}

	if patch.LastLoginAt != nil {
		identity.LastLoginAt = patch.LastLoginAt
	}

	if err := svc.repo.Save(identity); err != nil {
		return nil, shared.NewInternalError(err, "Failed to update account")
	}

	return identity, nil
}

// VerifyCredential never reveals more than match / no-match.
func (svc *IdentityService) VerifyCredential(identity *model.Identity, secret string) bool {
	if identity == nil || identity.CredentialHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(identity.CredentialHash), []byte(secret)) == nil
}

// Rollback removes an identity created inside a failed upgrade transaction,
// progress record included.
func (svc *IdentityService) Rollback(id string) {
	if err := svc.repo.DeleteProgress(id); err != nil {
		log.WithError(err).WithField("identity_id", id).Error("Failed to roll back progress record")
	}
	if err := svc.repo.Delete(id); err != nil {
		log.WithError(err).WithField("identity_id", id).Error("Failed to roll back identity")
	}
}

// AttachProgress transplants a consumed guest progress snapshot onto an
// identity: points carry over as-is, seconds floor to minutes for display,
// and the set fields are kept as historical record.
func (svc *IdentityService) AttachProgress(identityID string, gp *model.GuestProgress) (*model.IdentityProgress, error) {
	if gp == nil {
		gp = model.NewGuestProgress()
	}

	id, _ := uuid.NewV7()
	now := time.Now()
	progress := &model.IdentityProgress{
		ID:               id.String(),
		IdentityID:       identityID,
		Points:           gp.PointsEarned,
		TimeSpentMinutes: gp.TimeSpentSeconds / 60,
		LessonsViewed:    mustMarshalIDs(gp.LessonsViewed),
		QuizzesCompleted: mustMarshalIDs(gp.QuizzesCompleted),
		ChallengesTried:  mustMarshalIDs(gp.ChallengesTried),
		SubjectsExplored: mustMarshalIDs(gp.SubjectsExplored),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := svc.repo.CreateProgress(progress); err != nil {
		return nil, shared.NewInternalError(err, "Failed to attach progress")
	}

	return progress, nil
}

func (svc *IdentityService) GetProgress(identityID string) (*model.IdentityProgress, error) {
	progress, err := svc.repo.GetProgress(identityID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, shared.NewNotFoundError("Progress not found")
		}
		return nil, shared.NewInternalError(err, "Failed to load progress")
	}
	return progress, nil
}

func (svc *IdentityService) List(limit int) ([]model.Identity, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	identities, err := svc.repo.List(limit)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to list accounts")
	}
	return identities, nil
}

// ==================== PASSWORD RESET ====================

// RequestPasswordReset issues a one-shot 6-digit code with a short TTL. The
// response is identical whether or not the email exists, so the endpoint
// cannot be used to discover whether an account exists. Delivery is an
// external concern; the
// code reaches the mail pipeline through the log sink.
func (svc *IdentityService) RequestPasswordReset(ctx gocontext.Context, email string) error {
	identity, err := svc.FindByEmailOrMobile(email)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return nil
		}
		return err
	}

	key := resetCodeKey(identity.Email)
	if outstanding, err := svc.codes.Exists(ctx, key); err == nil && outstanding {
		log.WithField("identity_id", identity.ID).Info("Reset code still outstanding, not reissuing")
		return nil
	}

	code, err := generateResetCode()
	if err != nil {
		return shared.NewInternalError(err, "Failed to generate reset code")
	}

	if err := svc.codes.Set(ctx, key, code, passwordResetTTL); err != nil {
		return shared.NewInternalError(err, "Failed to store reset code")
	}

	log.WithField("identity_id", identity.ID).Info("Password reset code issued")
	return nil
}

func (svc *IdentityService) ResetPassword(ctx gocontext.Context, email, code, newPassword string) error {
	identity, err := svc.FindByEmailOrMobile(email)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return shared.NewAuthenticationError()
		}
		return err
	}

	stored, err := svc.codes.Get(ctx, resetCodeKey(identity.Email))
	if err != nil {
		return shared.NewInternalError(err, "Failed to load reset code")
	}
	if stored == "" || stored != code {
		return shared.NewAuthenticationError()
	}

	if _, err := svc.Update(identity.ID, model.IdentityPatch{Secret: &newPassword}); err != nil {
		return err
	}

	if err := svc.codes.Delete(ctx, resetCodeKey(identity.Email)); err != nil {
		log.WithError(err).Warn("Failed to delete used reset code")
	}

	return nil
}

// ==================== HELPERS ====================

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier)
	}
	return identifier
}

func identifierKeys(identifiers ...string) []string {
	keys := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		if identifier != "" {
			keys = append(keys, "ident:"+identifier)
		}
	}
	return keys
}

func hashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func resetCodeKey(email string) string {
	return "pwreset:" + email
}

func mustMarshalIDs(ids []string) json.RawMessage {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return json.RawMessage("[]")
	}
	return b
}
