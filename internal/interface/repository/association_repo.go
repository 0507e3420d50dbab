package repository

import (
	"context"
	"errors"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAssociationRepository implements the AssociationRepository interface
type GormAssociationRepository struct {
	db *gorm.DB
}

// NewGormAssociationRepository creates a new GORM association repository
func NewGormAssociationRepository(db *gorm.DB) repository.AssociationRepository {
	return &GormAssociationRepository{
		db: db,
	}
}

// Upsert stores the client for a phone number, last write wins
func (r *GormAssociationRepository) Upsert(ctx context.Context, assoc *entity.ClientAssociation) error {
	assoc.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"client_id", "client_name", "updated_at"}),
	}).Create(assoc).Error
}

// FindByPhone returns the remembered client for a phone number, nil when
// none is known
func (r *GormAssociationRepository) FindByPhone(ctx context.Context, phone string) (*entity.ClientAssociation, error) {
	var assoc entity.ClientAssociation
	result := r.db.WithContext(ctx).Where("phone = ?", phone).First(&assoc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &assoc, nil
}
