package seeders

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/hocvui-edu/hocvui_api/model"
)

// AdminSeeder creates the initial admin identity from environment config.
type AdminSeeder struct {
	db *gorm.DB
}

func NewAdminSeeder(db *gorm.DB) *AdminSeeder {
	return &AdminSeeder{db: db}
}

// SeedAdmin creates the admin identity when none exists. Idempotent.
func (s *AdminSeeder) SeedAdmin() error {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")

	if email == "" || password == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	var existing model.Identity
	if err := s.db.Where("role = ?", model.RoleAdmin).First(&existing).Error; err == nil {
		log.Println("Admin identity already exists, skipping admin seeding")
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	admin := model.Identity{
		ID:             id.String(),
		FirstName:      "Platform",
		LastName:       "Admin",
		Email:          email,
		CredentialHash: string(hashed),
		Role:           model.RoleAdmin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.Create(&admin).Error; err != nil {
		log.Printf("Error creating admin identity: %v", err)
		return err
	}

	log.Printf("Created admin identity: %s", admin.Email)
	return nil
}
