package store

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCredential loads one credential by name. The token field is the stored
// (opaque) blob; callers decrypt through the secrets package.
func (s *Store) GetCredential(name string) (models.Credential, error) {
	var cred models.Credential
	if err := s.db.Where("name = ?", name).First(&cred).Error; err != nil {
		return models.Credential{}, fmt.Errorf("store: get credential %s: %w", name, err)
	}
	return cred, nil
}

// ListCredentials returns all credentials ordered by creation time.
func (s *Store) ListCredentials() ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.Order("created_at DESC").Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", err)
	}
	return creds, nil
}

// SaveCredential creates or updates a credential.
func (s *Store) SaveCredential(cred *models.Credential) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "token", "description", "updated_at"}),
	}).Create(cred)
	if result.Error != nil {
		return fmt.Errorf("store: save credential %s: %w", cred.Name, result.Error)
	}
	return nil
}

// DeleteCredential removes a credential. Trackers referencing it fall back
// to anonymous access on their next check.
func (s *Store) DeleteCredential(name string) error {
	result := s.db.Where("name = ?", name).Delete(&models.Credential{})
	if result.Error != nil {
		return fmt.Errorf("store: delete credential %s: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: delete credential %s: %w", name, gorm.ErrRecordNotFound)
	}
	return nil
}
