// Package capability mints the scoped, time-bounded tokens a node presents to the real-time voice provider.
//
// Tokens are HS256 JWTs in the layout the provider expects: the API key is the issuer, the node identity is the
// subject and a "video" grant carries the room and the publish/subscribe rights.
package capability

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DisabledMarker is injected into a node's configuration in place of a token when it may not use the resource.
const DisabledMarker = "disabled"

// Grant describes what the bearer of a token may do in a room.
type Grant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   *bool  `json:"canPublish,omitempty"`
	CanSubscribe *bool  `json:"canSubscribe,omitempty"`
}

// Claims is the full claim set of a capability token.
type Claims struct {
	jwt.RegisteredClaims
	Video *Grant `json:"video,omitempty"`
}

// Config defines how capability tokens are minted.
type Config struct {
	APIKey    string
	APISecret string
	TTL       time.Duration
	Now       func() time.Time
}

// Minter creates and verifies capability tokens.
type Minter struct {
	cfg Config
}

// NewMinter validates the configuration and returns a minter.
func NewMinter(cfg Config) (*Minter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, errors.New("the capability API key and secret are required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("invalid capability TTL: %s", cfg.TTL)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Minter{cfg: cfg}, nil
}

// Identity returns the provider identity used for a node.
func Identity(nodeID string) string {
	return "node-" + nodeID
}

// Room returns the provider room used for a node.
func Room(nodeID string) string {
	return "room-" + nodeID
}

// Mint creates a token for the given identity and room.
func (m *Minter) Mint(identity, room string, canPublish, canSubscribe bool) (string, error) {
	if identity == "" || room == "" {
		return "", errors.New("an identity and room are required to mint a capability")
	}

	now := m.cfg.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.APIKey,
			Subject:   identity,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
		},
		Video: &Grant{
			Room:         room,
			RoomJoin:     true,
			CanPublish:   &canPublish,
			CanSubscribe: &canSubscribe,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.APISecret))
	if err != nil {
		return "", errors.Wrap(err, "unable to sign the capability token")
	}
	return token, nil
}

// Parse verifies a token minted by this minter and returns its claims.
func (m *Minter) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) {
			return []byte(m.cfg.APISecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.APIKey),
		jwt.WithTimeFunc(m.cfg.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid capability token")
	}
	if claims.Video == nil {
		return nil, errors.New("invalid capability token: no video grant")
	}
	return &claims, nil
}

// Publishes returns true if the grant allows publishing.
func (g *Grant) Publishes() bool {
	return g.CanPublish != nil && *g.CanPublish
}

// Subscribes returns true if the grant allows subscribing.
func (g *Grant) Subscribes() bool {
	return g.CanSubscribe == nil || *g.CanSubscribe
}
