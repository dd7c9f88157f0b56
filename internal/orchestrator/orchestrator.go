// Package orchestrator is the client for the external container orchestrator that runs node containers.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cyverse/ngs/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logging.ForPackage("orchestrator")

// maxErrorBody limits how much of an error response is included in error messages.
const maxErrorBody = 512

// ContainerConfig is the configuration handed to the orchestrator when a node container is started.
type ContainerConfig struct {
	// Name is derived from the node ID so the orchestrator can replace an existing container instead of starting a
	// second one when an activation is retried.
	Name             string            `json:"name"`
	NodeID           string            `json:"node_id"`
	OwnerID          string            `json:"owner_id"`
	Image            string            `json:"image,omitempty"`
	ExternalAgentRef string            `json:"external_agent_ref"`
	Capability       string            `json:"capability"`
	ResourceEnabled  bool              `json:"resource_enabled"`
	ResourceURL      string            `json:"resource_url,omitempty"`
	Room             string            `json:"room"`
	ChannelConfig    map[string]any    `json:"channel_config,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
}

// ContainerName returns the deterministic container name for a node.
func ContainerName(nodeID string) string {
	return "node-" + nodeID
}

type startResponse struct {
	ContainerRef string `json:"container_ref"`
}

// Client talks to the orchestrator's HTTP API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a client for the orchestrator at baseURL. Every request is bounded by the timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid orchestrator URL: %s", baseURL)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid orchestrator URL: %s", baseURL)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid orchestrator timeout: %s", timeout)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) endpoint(elems ...string) string {
	return c.baseURL.JoinPath(elems...).String()
}

// checkResponse returns an error describing a non-2xx response.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("orchestrator returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
}

// StartContainer asks the orchestrator to (re)start a node container and returns the container reference.
func (c *Client) StartContainer(ctx context.Context, cfg *ContainerConfig) (string, error) {
	log := log.WithFields(logrus.Fields{"context": "start container", "node": cfg.NodeID})

	body, err := json.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode the container configuration")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("containers"), bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "unable to build the start request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "unable to reach the orchestrator")
	}
	defer resp.Body.Close()

	if err = checkResponse(resp); err != nil {
		return "", err
	}

	var result startResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "unable to decode the orchestrator response")
	}
	if result.ContainerRef == "" {
		return "", errors.New("the orchestrator did not return a container reference")
	}

	log.Debugf("orchestrator started container %s", result.ContainerRef)
	return result.ContainerRef, nil
}

// StopContainer asks the orchestrator to terminate a container. A container the orchestrator no longer knows about
// is treated as already stopped.
func (c *Client) StopContainer(ctx context.Context, containerRef string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("containers", containerRef), nil)
	if err != nil {
		return errors.Wrap(err, "unable to build the stop request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "unable to reach the orchestrator")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.WithField("container", containerRef).Warn("container not found; treating it as stopped")
		return nil
	}
	return checkResponse(resp)
}
