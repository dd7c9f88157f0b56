package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyverse/ngs/internal/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetSubscription looks up the subscription for an owner along with its tier. A nil subscription is returned if
// the owner has never subscribed to a tier.
func GetSubscription(ctx context.Context, db *gorm.DB, ownerID string) (*model.Subscription, error) {
	wrapMsg := fmt.Sprintf("unable to look up the subscription for '%s'", ownerID)

	var subscription model.Subscription
	err := db.WithContext(ctx).
		Preload("Tier").
		Where("owner_id = ?", ownerID).
		First(&subscription).
		Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return &subscription, nil
}

// SaveSubscription subscribes an owner to a tier, replacing any existing subscription for the owner.
func SaveSubscription(ctx context.Context, db *gorm.DB, subscription *model.Subscription) error {
	wrapMsg := fmt.Sprintf("unable to save the subscription for '%s'", subscription.OwnerID)

	err := db.WithContext(ctx).
		Omit("Tier").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns(
				[]string{"tier_id", "resource_cap_minutes", "node_limit", "external_billing_ref", "updated_at"},
			),
		}).
		Create(subscription).
		Error
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// SubscriptionListingParams represents the parameters that can be used to customize a subscription listing.
type SubscriptionListingParams struct {
	Offset    int
	Limit     int
	SortField string
	SortDir   string
	Search    string
}

// ListSubscriptions lists subscriptions for multiple owners.
func ListSubscriptions(ctx context.Context, db *gorm.DB, params *SubscriptionListingParams) ([]*model.Subscription, int64, error) {
	var subscriptions []*model.Subscription
	var count int64

	// Determine the offset and limit to use.
	var offset int = 0
	if params != nil && params.Offset >= 0 {
		offset = params.Offset
	}
	var limit int = 50
	if params != nil && params.Limit >= 0 {
		limit = params.Limit
	}

	// Determine the sort field and sort order to use.
	sortField := "owner_id"
	if params != nil && params.SortField != "" {
		sortField = params.SortField
	}
	order := "asc"
	if params != nil && params.SortDir != "" {
		order = params.SortDir
	}
	orderBy := fmt.Sprintf("%s %s", sortField, order)

	// Build the base query.
	baseQuery := db.WithContext(ctx).Model(&model.Subscription{})

	// Add the search clause if we're supposed to.
	if params != nil && params.Search != "" {
		search := strings.ReplaceAll(params.Search, "%", "\\%")
		search = strings.ReplaceAll(search, "_", "\\_")
		baseQuery = baseQuery.Where("owner_id LIKE ?", "%"+search+"%")
	}

	// Count the number of items in the result set.
	err := baseQuery.Session(&gorm.Session{}).Count(&count).Error

	// Look up the result set.
	if err == nil {
		err = baseQuery.
			Preload("Tier").
			Offset(offset).
			Limit(limit).
			Order(orderBy).
			Find(&subscriptions).Error
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "unable to list subscriptions")
	}

	return subscriptions, count, nil
}
