package controllers

import (
	"fmt"
	"net/http"

	"github.com/cyverse/ngs/internal/db"
	"github.com/cyverse/ngs/internal/httpmodel"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/query"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// subscriptionSortFields maps the sort fields accepted by the listing endpoint to column names.
var subscriptionSortFields = map[string]string{
	"owner":        "owner_id",
	"tier":         "tier_id",
	"created-date": "created_at",
	"updated-date": "updated_at",
}

// ListSubscriptions lists subscriptions.
//
// swagger:route GET /v1/subscriptions subscriptions listSubscriptions
//
// # List Subscriptions
//
// Lists subscriptions, optionally filtered by an owner ID substring.
//
// Responses:
//
//	200: subscriptionListing
//	400: badRequestResponse
//	500: internalServerErrorResponse
func (s Server) ListSubscriptions(ctx echo.Context) error {
	var err error

	log := log.WithField("context", "list-subscriptions")

	page, err := query.ValidatePage(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	sortColumn, err := query.ValidateSortField(ctx, subscriptionSortFields, "owner")
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	sortDir, err := query.ValidateSortOrder(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	params := &db.SubscriptionListingParams{
		Offset:    page.Offset,
		Limit:     page.Limit,
		SortField: sortColumn,
		SortDir:   sortDir,
		Search:    ctx.QueryParam("search"),
	}
	subscriptions, count, err := db.ListSubscriptions(ctx.Request().Context(), s.GORMDB, params)
	if err != nil {
		log.Error(err)
		return model.Error(ctx, err.Error(), http.StatusInternalServerError)
	}

	return model.Success(ctx, map[string]any{"subscriptions": subscriptions, "total": count}, http.StatusOK)
}

// GetSubscription returns the subscription for an owner. Owners without a subscription get the default tier,
// which is marked as such in the response.
//
// swagger:route GET /v1/subscriptions/{owner_id} subscriptions getSubscription
//
// # Get Subscription
//
// Returns the subscription for an owner.
//
// Responses:
//
//	200: subscription
//	400: badRequestResponse
//	500: internalServerErrorResponse
func (s Server) GetSubscription(ctx echo.Context) error {
	ownerID, err := s.extractOwnerID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	subscription, err := s.Registry.GetSubscription(ctx.Request().Context(), ownerID)
	if err != nil {
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, subscription, http.StatusOK)
}

// PutSubscription subscribes an owner to a tier, replacing the owner's existing subscription.
//
// swagger:route PUT /v1/subscriptions/{owner_id} subscriptions putSubscription
//
// # Subscribe an Owner to a Tier
//
// Subscribes an owner to a tier. If `snapshot` is set, the tier's current limits are copied to the subscription
// and later changes to the tier do not affect it.
//
// Responses:
//
//	200: subscription
//	400: badRequestResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) PutSubscription(ctx echo.Context) error {
	ownerID, err := s.extractOwnerID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	log := log.WithFields(logrus.Fields{"context": "put subscription", "owner": ownerID})

	var body httpmodel.SubscriptionRequest
	if err = ctx.Bind(&body); err != nil {
		return model.Error(ctx, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
	}
	if err = validate.Struct(body); err != nil {
		return model.Error(ctx, "tier_id is required", http.StatusBadRequest)
	}

	// Begin a transaction.
	return s.GORMDB.Transaction(func(tx *gorm.DB) error {
		context := ctx.Request().Context()

		tier, err := db.GetTier(context, tx, body.TierID)
		if err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		} else if tier == nil {
			return model.Error(ctx, fmt.Sprintf("tier %s not found", body.TierID), http.StatusNotFound)
		} else if !tier.IsActive {
			return model.Error(ctx, fmt.Sprintf("tier %s is not active", body.TierID), http.StatusBadRequest)
		}

		subscription, err := body.ToDBModel(ownerID, tier)
		if err != nil {
			return model.Error(ctx, err.Error(), http.StatusBadRequest)
		}
		if err = db.SaveSubscription(context, tx, subscription); err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		}

		saved, err := db.GetSubscription(context, tx, ownerID)
		if err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		} else if saved == nil {
			msg := fmt.Sprintf("subscription for %s not found after saving it", ownerID)
			return model.Error(ctx, msg, http.StatusInternalServerError)
		}

		log.Infof("subscribed to tier %s", tier.ID)

		return model.Success(ctx, saved, http.StatusOK)
	})
}
