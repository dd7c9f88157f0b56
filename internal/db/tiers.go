package db

import (
	"context"
	"fmt"

	"github.com/cyverse/ngs/internal/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetTier looks up the tier with the given identifier. A nil tier is returned if the tier doesn't exist.
func GetTier(ctx context.Context, db *gorm.DB, tierID string) (*model.TierDefinition, error) {
	wrapMsg := fmt.Sprintf("unable to look up tier '%s'", tierID)

	var tier model.TierDefinition
	err := db.WithContext(ctx).Where("tier_id = ?", tierID).First(&tier).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return &tier, nil
}

// CheckTierExistence determines whether or not a tier with the given identifier exists.
func CheckTierExistence(ctx context.Context, db *gorm.DB, tierID string) (bool, error) {
	wrapMsg := fmt.Sprintf("unable to look up tier '%s'", tierID)

	var count int64
	err := db.WithContext(ctx).
		Model(&model.TierDefinition{}).
		Where("tier_id = ?", tierID).
		Count(&count).
		Error
	if err != nil {
		return false, errors.Wrap(err, wrapMsg)
	}

	return count > 0, nil
}

// ListTiers lists all of the tiers, optionally restricting the listing to active tiers.
func ListTiers(ctx context.Context, db *gorm.DB, activeOnly bool) ([]model.TierDefinition, error) {
	wrapMsg := "unable to list tiers"

	query := db.WithContext(ctx).Order("tier_id asc")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	tiers := make([]model.TierDefinition, 0)
	if err := query.Find(&tiers).Error; err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return tiers, nil
}

// SaveTier inserts a tier or updates the existing tier with the same identifier.
func SaveTier(ctx context.Context, db *gorm.DB, tier *model.TierDefinition) error {
	wrapMsg := fmt.Sprintf("unable to save tier '%s'", tier.ID)

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tier_id"}},
			DoUpdates: clause.AssignmentColumns(
				[]string{"display_name", "resource_cap_minutes", "node_limit", "is_active", "updated_at"},
			),
		}).
		Create(tier).
		Error
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}
