package repositories

import (
	"errors"
	"time"

	"github.com/hocvui-edu/hocvui_api/model"
	"gorm.io/gorm"
)

// ErrNotFound is what callers branch on; the gorm error stays wrapped.
var ErrNotFound = errors.New("record not found")

// IdentityRepository handles account and progress persistence. Uniqueness
// serialization lives in the identity service; this layer is plain reads and
// writes.
type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) GetByID(id string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.Where("id = ?", id).First(&identity).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

// GetByIdentifier matches either unique identifier column. Guest identities
// never reach this table, so no role filter is needed.
func (r *IdentityRepository) GetByIdentifier(identifier string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.Where("email = ? OR mobile_number = ?", identifier, identifier).First(&identity).Error
	if err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (r *IdentityRepository) Create(identity *model.Identity) error {
	return r.db.Create(identity).Error
}

func (r *IdentityRepository) Save(identity *model.Identity) error {
	identity.UpdatedAt = time.Now()
	return r.db.Save(identity).Error
}

func (r *IdentityRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Identity{}).Error
}

func (r *IdentityRepository) List(limit int) ([]model.Identity, error) {
	var identities []model.Identity
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&identities).Error; err != nil {
		return nil, err
	}
	return identities, nil
}

func (r *IdentityRepository) CreateProgress(progress *model.IdentityProgress) error {
	return r.db.Create(progress).Error
}

func (r *IdentityRepository) GetProgress(identityID string) (*model.IdentityProgress, error) {
	var progress model.IdentityProgress
	if err := r.db.Where("identity_id = ?", identityID).First(&progress).Error; err != nil {
		return nil, translate(err)
	}
	return &progress, nil
}

func (r *IdentityRepository) DeleteProgress(identityID string) error {
	return r.db.Where("identity_id = ?", identityID).Delete(&model.IdentityProgress{}).Error
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
