package model

// RootResponse describes the service in responses to the root endpoint.
//
// swagger:model
type RootResponse struct {
	// The name of the service
	Service string `json:"service"`

	// The service title
	Title string `json:"title"`

	// The service version
	Version string `json:"version"`
}

// APIVersionResponse describes an API version.
//
// swagger:model
type APIVersionResponse struct {
	// The API version
	Version string `json:"version"`
}
