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

// ListTiers is the handler for the GET /v1/tiers endpoint.
//
// swagger:route GET /v1/tiers tiers listTiers
//
// # List Tiers
//
// Lists the tiers. Inactive tiers are included unless the `active` query parameter is `true`.
//
// responses:
//
//	200: tiersResponse
//	400: badRequestResponse
//	500: internalServerErrorResponse
func (s Server) ListTiers(ctx echo.Context) error {
	log := log.WithFields(logrus.Fields{"context": "listing tiers"})

	context := ctx.Request().Context()

	activeOnly := false
	activeOnly, err := query.ValidateBooleanQueryParam(ctx, "active", &activeOnly)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	tiers, err := db.ListTiers(context, s.GORMDB, activeOnly)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusInternalServerError)
	}

	log.Debug("listing tiers from the database")

	return model.Success(ctx, tiers, http.StatusOK)
}

// GetTier returns the tier with the given identifier.
//
// swagger:route GET /v1/tiers/{tier_id} tiers getTier
//
// # Get Tier Information
//
// Returns the tier with the given identifier.
//
// responses:
//
//	200: tierResponse
//	400: badRequestResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) GetTier(ctx echo.Context) error {
	tierID, err := extractTierID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	log := log.WithFields(logrus.Fields{"context": "getting tier", "tierID": tierID})

	tier, err := s.Registry.GetTier(ctx.Request().Context(), tierID)
	if err != nil {
		return model.ErrorFrom(ctx, err)
	}

	log.Debug("successfully looked up tier to return")

	return model.Success(ctx, tier, http.StatusOK)
}

// AddTier adds a new tier to the database.
//
// swagger:route POST /v1/tiers tiers addTier
//
// # Add Tier
//
// Adds a tier to the database.
//
// Responses:
//
//	200: tierResponse
//	400: badRequestResponse
//	409: conflictResponse
//	500: internalServerErrorResponse
func (s Server) AddTier(ctx echo.Context) error {
	var err error

	log := log.WithFields(logrus.Fields{"context": "adding tier"})

	context := ctx.Request().Context()

	// Parse and validate the request body.
	var tier httpmodel.NewTier
	if err = ctx.Bind(&tier); err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}
	if err = tier.Validate(); err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	log = log.WithFields(logrus.Fields{"tierID": tier.ID})
	log.Debugf("adding a new tier to the database: %+v", tier)

	// Begin a transaction.
	return s.GORMDB.Transaction(func(tx *gorm.DB) error {
		exists, err := db.CheckTierExistence(context, tx, tier.ID)
		if err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		} else if exists {
			msg := fmt.Sprintf("tier %s already exists", tier.ID)
			return model.Error(ctx, msg, http.StatusConflict)
		}

		dbTier := tier.ToDBModel()
		if err = db.SaveTier(context, tx, &dbTier); err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		}

		log.Debug("successfully added tier to the database")

		return model.Success(ctx, dbTier, http.StatusOK)
	})
}

// UpdateTier replaces the limits of an existing tier. Subscriptions without snapshotted limits pick up the new
// limits immediately.
//
// swagger:route PUT /v1/tiers/{tier_id} tiers updateTier
//
// # Update Tier
//
// Updates an existing tier.
//
// Responses:
//
//	200: tierResponse
//	400: badRequestResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) UpdateTier(ctx echo.Context) error {
	var err error

	// Extract and validate the tier ID.
	tierID, err := extractTierID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	log := log.WithFields(logrus.Fields{"context": "updating tier", "tierID": tierID})
	log.Info("updating an existing tier")

	// Parse and validate the request body.
	var tier httpmodel.NewTier
	if err = ctx.Bind(&tier); err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}
	tier.ID = tierID
	if err = tier.Validate(); err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	// Begin a transaction.
	return s.GORMDB.Transaction(func(tx *gorm.DB) error {
		context := ctx.Request().Context()

		// Verify that the tier exists.
		exists, err := db.CheckTierExistence(context, tx, tierID)
		if err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		} else if !exists {
			msg := fmt.Sprintf("tier %s not found", tierID)
			return model.Error(ctx, msg, http.StatusNotFound)
		}

		dbTier := tier.ToDBModel()
		if err = db.SaveTier(context, tx, &dbTier); err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		}

		// Look up the tier again so that the response includes the timestamps.
		updated, err := db.GetTier(context, tx, tierID)
		if err != nil {
			return model.Error(ctx, err.Error(), http.StatusInternalServerError)
		} else if updated == nil {
			msg := fmt.Sprintf("tier %s not found after saving it", tierID)
			return model.Error(ctx, msg, http.StatusInternalServerError)
		}
		return model.Success(ctx, updated, http.StatusOK)
	})
}
