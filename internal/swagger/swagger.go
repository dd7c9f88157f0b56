// Package api NGS
//
// Documentation of the Node Governance Service API
//
//	Schemes: http
//	BasePath: /
//	Version: V1
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
// swagger:meta
package swagger

import (
	"encoding/json"

	"github.com/cyverse/ngs/internal/admission"
	"github.com/cyverse/ngs/internal/capability"
	"github.com/cyverse/ngs/internal/guard"
	"github.com/cyverse/ngs/internal/httpmodel"
	"github.com/cyverse/ngs/internal/lifecycle"
	"github.com/cyverse/ngs/internal/metering"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/registry"
)

// Note: the comments in this package don't conform to the convention of including the name of the entity that the
// comment describes. The reason for this is because the comments appear as-is in the API documentation. Confusing
// documentation is produced when the structure names appear in the API documentation.

// Error
//
// Having the same object definition for multiple HTTP response status codes seems to confuse ReDoc, so we're using
// aliases as a workaround.
//
// swagger:response errorResponse
type ErrorResponse struct {

	// in: body
	Body struct {

		// A brief description of the error
		Error string `json:"error"`

		// The status of the request
		Status string `json:"status"`

		// The kind of failure, when known
		Kind string `json:"kind,omitempty"`
	}
}

// Bad Request
//
// swagger:response badRequestResponse
type BadRequestResponse struct {
	ErrorResponse
}

// Quota Exceeded
//
// swagger:response quotaExceededResponse
type QuotaExceededResponse struct {
	ErrorResponse
}

// Forbidden
//
// swagger:response forbiddenResponse
type ForbiddenResponse struct {
	ErrorResponse
}

// Not Found
//
// swagger:response notFoundResponse
type NotFoundResponse struct {
	ErrorResponse
}

// Conflict
//
// swagger:response conflictResponse
type ConflictResponse struct {
	ErrorResponse
}

// Internal Server Error
//
// swagger:response internalServerErrorResponse
type InternalServerErrorResponse struct {
	ErrorResponse
}

// Container Provisioning Failed
//
// swagger:response provisioningErrorResponse
type ProvisioningErrorResponse struct {
	ErrorResponse
}

// Documentation for the successful response body wrapper.
//
// swagger:model
type ResponseBodyWrapper struct {

	// The status of the request
	Status string `json:"status"`
}

// Service Information
//
// swagger:response rootResponse
type RootResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The service information
		Result model.RootResponse `json:"result"`
	}
}

// Service API Version Information
//
// swagger:response apiVersionResponse
type APIVersionResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The API version information
		Result model.APIVersionResponse `json:"result"`
	}
}

// Parameters shared by endpoints that operate on a single node.
//
// swagger:parameters getNode listNodeSessions
type NodeIDParameter struct {

	// The node identifier
	//
	// in: path
	// required: true
	NodeID string `json:"node_id"`
}

// Parameters shared by endpoints that operate on a single owner.
//
// swagger:parameters listOwnerNodes getOwnerLimits getSubscription listStrikes
type OwnerIDParameter struct {

	// The owner identifier
	//
	// in: path
	// required: true
	OwnerID string `json:"owner_id"`
}

// Parameters for the node activation endpoint.
//
// swagger:parameters activateNode
type ActivateNodeParameters struct {

	// in: body
	Body admission.ActivateRequest
}

// Node Activation Result
//
// swagger:response activationResponse
type ActivationResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The activation result
		Result admission.ActivationResult `json:"result"`
	}
}

// Node Information
//
// swagger:response nodeResponse
type NodeResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The node information
		Result model.Node `json:"result"`
	}
}

// Node Listing
//
// swagger:response nodesResponse
type NodesResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The list of nodes
		Result []model.Node `json:"result"`
	}
}

// Parameters for the node session listing endpoint.
//
// swagger:parameters listNodeSessions
type ListNodeSessionsParameters struct {

	// The maximum number of sessions to return
	//
	// in: query
	// minimum: 1
	// maximum: 1000
	// default: 50
	Limit int32 `json:"limit"`
}

// Resource Session Listing
//
// swagger:response sessionsResponse
type SessionsResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The most recent sessions first
		Result []model.ResourceSession `json:"result"`
	}
}

// Effective Limits
//
// swagger:response limitsResponse
type LimitsResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The limits that apply to the owner
		Result registry.Limits `json:"result"`
	}
}

// Parameters for endpoints that act on behalf of a user.
//
// swagger:parameters suspendNode reactivateNode resetNodeUsage
type PrincipalParameters struct {

	// The node identifier
	//
	// in: path
	// required: true
	NodeID string `json:"node_id"`

	// in: body
	Body httpmodel.Principal
}

// Suspension Result
//
// swagger:response suspendResponse
type SuspendResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The suspension result
		Result lifecycle.SuspendResult `json:"result"`
	}
}

// Parameters for the action evaluation endpoint.
//
// swagger:parameters evaluateAction
type EvaluateActionParameters struct {

	// The node identifier
	//
	// in: path
	// required: true
	NodeID string `json:"node_id"`

	// in: body
	Body struct {

		// The kind of action the node wants to perform
		//
		// required: true
		ActionKind string `json:"action_kind"`

		// The arguments of the action. Shell commands may be given as a string, an argument list, or an object
		// with a command field.
		ActionArgs json.RawMessage `json:"action_args"`
	}
}

// Action Decision
//
// swagger:response decisionResponse
type DecisionResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The decision
		Result guard.Decision `json:"result"`
	}
}

// Parameters for the session started endpoint.
//
// swagger:parameters sessionStarted
type SessionStartedParameters struct {

	// in: body
	Body metering.SessionStarted
}

// Parameters for the session ended endpoint.
//
// swagger:parameters sessionEnded
type SessionEndedParameters struct {

	// in: body
	Body metering.SessionEnded
}

// Session Event Outcome
//
// swagger:response sessionOutcomeResponse
type SessionOutcomeResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The outcome of the event
		Result *metering.Outcome `json:"result"`
	}
}

// Parameters for the tier listing endpoint.
//
// swagger:parameters listTiers
type ListTiersParameters struct {

	// If set to true, only active tiers are listed
	//
	// in: query
	Active bool `json:"active"`
}

// Parameters for endpoints that operate on a single tier.
//
// swagger:parameters getTier
type TierIDParameter struct {

	// The tier identifier
	//
	// in: path
	// required: true
	TierID string `json:"tier_id"`
}

// Parameters for the endpoint used to add a tier.
//
// swagger:parameters addTier
type AddTierParameters struct {

	// in: body
	Body httpmodel.NewTier
}

// Parameters for the endpoint used to update a tier.
//
// swagger:parameters updateTier
type UpdateTierParameters struct {

	// The tier identifier
	//
	// in: path
	// required: true
	TierID string `json:"tier_id"`

	// in: body
	Body httpmodel.NewTier
}

// Tier Information
//
// swagger:response tierResponse
type TierResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The tier information
		Result model.TierDefinition `json:"result"`
	}
}

// Tier Listing
//
// swagger:response tiersResponse
type TiersResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The list of tiers
		Result []model.TierDefinition `json:"result"`
	}
}

// Parameters for the subscription listing endpoint.
//
// swagger:parameters listSubscriptions
type ListSubscriptionsParameters struct {

	// The number of subscriptions to skip
	//
	// in: query
	// minimum: 0
	// default: 0
	Offset int32 `json:"offset"`

	// The maximum number of subscriptions to return
	//
	// in: query
	// minimum: 1
	// maximum: 1000
	// default: 50
	Limit int32 `json:"limit"`

	// The field to sort by
	//
	// in: query
	// enum: owner,tier,created-date,updated-date
	// default: owner
	SortField string `json:"sort-field"`

	// The sort order
	//
	// in: query
	// enum: asc,desc
	// default: asc
	SortOrder string `json:"sort-order"`

	// Only list subscriptions whose owner ID contains this string
	//
	// in: query
	Search string `json:"search"`
}

// Subscription Listing
//
// swagger:response subscriptionListing
type SubscriptionListingWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The subscription listing
		Result struct {

			// The subscriptions on the requested page
			Subscriptions []model.Subscription `json:"subscriptions"`

			// The total number of matching subscriptions
			Total int64 `json:"total"`
		} `json:"result"`
	}
}

// Parameters for the endpoint used to subscribe an owner to a tier.
//
// swagger:parameters putSubscription
type PutSubscriptionParameters struct {

	// The owner identifier
	//
	// in: path
	// required: true
	OwnerID string `json:"owner_id"`

	// in: body
	Body httpmodel.SubscriptionRequest
}

// Subscription Information
//
// swagger:response subscription
type SubscriptionWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The subscription
		Result model.Subscription `json:"result"`
	}
}

// Parameters for the strike listing endpoint.
//
// swagger:parameters listStrikes
type ListStrikesParameters struct {

	// The number of strikes to skip
	//
	// in: query
	// minimum: 0
	// default: 0
	Offset int32 `json:"offset"`

	// The maximum number of strikes to return
	//
	// in: query
	// minimum: 1
	// maximum: 1000
	// default: 50
	Limit int32 `json:"limit"`
}

// Security Strike Listing
//
// swagger:response strikeListing
type StrikeListingWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The strike listing
		Result struct {

			// The strikes on the requested page, most recent first
			Strikes []model.SecurityStrike `json:"strikes"`

			// The total number of strikes recorded for the owner
			Total int64 `json:"total"`
		} `json:"result"`
	}
}

// Parameters for the capability verification endpoint.
//
// swagger:parameters verifyCapability
type VerifyCapabilityParameters struct {

	// in: body
	Body struct {

		// The capability token to verify
		//
		// required: true
		Token string `json:"token"`
	}
}

// Capability Claims
//
// swagger:response capabilityResponse
type CapabilityResponseWrapper struct {

	// in:body
	Body struct {
		ResponseBodyWrapper

		// The claims carried by the token
		Result capability.Claims `json:"result"`
	}
}
