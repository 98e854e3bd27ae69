package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/tenant"
)

// Credential returns the requested password for delivery to the device.
// When the role's status flag is unset the stored value is never
// revealed, whether or not one exists.
func (s *gormStore) Credential(ctx context.Context, tc tenant.Context, machineID uint, role parse.CredentialRole) (string, error) {
	var m model.Machine
	err := s.db.WithContext(ctx).Table(tc.Table("machines")).
		Where("id = ?", machineID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrMachineNotFound
	}
	if err != nil {
		return "", err
	}

	if role == parse.RoleSupervisor {
		if !m.StatusS {
			return "", ErrCredentialNotSet
		}
		return m.SupervisorPassword, nil
	}
	if !m.StatusU {
		return "", ErrCredentialNotSet
	}
	return m.UserPassword, nil
}

// ClearCredential flips the role's status flag to "not set" after the
// device acknowledges it has retrieved the password. One-way from the
// device's perspective, and idempotent.
func (s *gormStore) ClearCredential(ctx context.Context, tc tenant.Context, machineID uint, role parse.CredentialRole) error {
	col := "status_u"
	if role == parse.RoleSupervisor {
		col = "status_s"
	}
	return s.db.WithContext(ctx).Table(tc.Table("machines")).
		Where("id = ?", machineID).
		Updates(map[string]any{col: false, "updated_at": time.Now()}).Error
}
