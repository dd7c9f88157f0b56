package db

import (
	"context"
	"fmt"

	"github.com/cyverse/ngs/internal/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CreateStrike records a security strike. Strikes are never updated or deleted.
func CreateStrike(ctx context.Context, db *gorm.DB, strike *model.SecurityStrike) error {
	wrapMsg := fmt.Sprintf("unable to record a security strike for '%s'", strike.OwnerID)

	if err := db.WithContext(ctx).Create(strike).Error; err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// ListStrikes lists the security strikes recorded for an owner, most recent first, along with the total count.
func ListStrikes(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]model.SecurityStrike, int64, error) {
	wrapMsg := fmt.Sprintf("unable to list the security strikes for '%s'", ownerID)

	var count int64
	baseQuery := db.WithContext(ctx).Model(&model.SecurityStrike{}).Where("owner_id = ?", ownerID)
	if err := baseQuery.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, errors.Wrap(err, wrapMsg)
	}

	strikes := make([]model.SecurityStrike, 0)
	err := baseQuery.
		Order("recorded_at desc").
		Offset(offset).
		Limit(limit).
		Find(&strikes).
		Error
	if err != nil {
		return nil, 0, errors.Wrap(err, wrapMsg)
	}

	return strikes, count, nil
}
