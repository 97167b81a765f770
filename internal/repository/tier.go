package repository

import (
	"context"

	"github.com/aman-churiwal/admission-gateway/internal/models"
	"github.com/aman-churiwal/admission-gateway/internal/storage"
	"gorm.io/gorm/clause"
)

type PlanTierRepository struct {
	db *storage.Postgres
}

func NewPlanTierRepository(db *storage.Postgres) *PlanTierRepository {
	return &PlanTierRepository{db: db}
}

func (r *PlanTierRepository) List(ctx context.Context) ([]models.PlanTier, error) {
	var tiers []models.PlanTier
	err := r.db.DB.WithContext(ctx).
		Order("name ASC").
		Find(&tiers).Error

	return tiers, err
}

// Upsert inserts or replaces a tier row by name.
func (r *PlanTierRepository) Upsert(ctx context.Context, tier *models.PlanTier) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(tier).Error
}

func (r *PlanTierRepository) Delete(ctx context.Context, name string) error {
	return r.db.DB.WithContext(ctx).
		Where("name = ?", name).
		Delete(&models.PlanTier{}).Error
}
