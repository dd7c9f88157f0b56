package config

import (
	"errors"
	"strings"
	"time"

	"github.com/cyverse-de/go-mod/cfg"
)

var ServiceName = "NGS"

// Default values for optional settings.
const (
	DefaultListenPort          = 9000
	DefaultOrchestratorTimeout = 10 * time.Second
	DefaultCapabilityTTL       = time.Hour
	DefaultTierID              = "free"
	DefaultBaseSubject         = "cyverse.ngs"
	DefaultBaseQueueName       = "cyverse.ngs"
	DefaultMaxReconnects       = 10
	DefaultReconnectWait       = 1
	DefaultEventTimeout        = 10 * time.Second
)

// DefaultAllowedActionKinds lists the action kinds that nodes may perform without inspection unless the
// configuration says otherwise.
var DefaultAllowedActionKinds = []string{"send_message", "read_file", "http_fetch", "speak"}

// Specification defines the configuration settings for the NGS service.
type Specification struct {
	DatabaseURI         string
	ReinitDB            bool
	RunSchemaMigrations bool
	ListenPort          int

	NatsCluster   string
	MaxReconnects int
	ReconnectWait int
	CACertPath    string
	TLSKeyPath    string
	TLSCertPath   string
	CredsPath     string
	BaseSubject   string
	BaseQueueName string
	EventTimeout  time.Duration

	OrchestratorBaseURL string
	OrchestratorTimeout time.Duration
	OrchestratorImage   string

	VoiceURL       string
	VoiceAPIKey    string
	VoiceAPISecret string
	CapabilityTTL  time.Duration

	DefaultTierID      string
	AdminUsers         []string
	GuardDefaultDeny   bool
	AllowedActionKinds []string
	UsernameSuffix     string
}

// NATSEnabled returns true if session events should also be consumed from NATS.
func (s *Specification) NATSEnabled() bool {
	return s.NatsCluster != ""
}

// splitList splits a comma separated configuration value, dropping empty entries.
func splitList(value string) []string {
	result := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// LoadConfig loads the configuration for the NGS service.
func LoadConfig(envPrefix, configPath, dotEnvPath string) (*Specification, error) {
	k, err := cfg.Init(&cfg.Settings{
		EnvPrefix:   envPrefix,
		ConfigPath:  configPath,
		DotEnvPath:  dotEnvPath,
		StrictMerge: false,
		FileType:    cfg.YAML,
	})
	if err != nil {
		return nil, err
	}

	var s Specification

	s.DatabaseURI = k.String("database.uri")
	if s.DatabaseURI == "" {
		return nil, errors.New("database.uri or NGS_DATABASE_URI must be set")
	}

	s.ReinitDB = k.Bool("reinit.db")
	s.RunSchemaMigrations = k.Bool("run.migrations")

	s.ListenPort = k.Int("listen.port")
	if s.ListenPort == 0 {
		s.ListenPort = DefaultListenPort
	}

	// NATS is optional; session events can always be delivered over HTTP.
	s.NatsCluster = k.String("nats.cluster")
	s.CredsPath = k.String("nats.creds_path")
	s.CACertPath = k.String("nats.ca_cert_path")
	s.TLSCertPath = k.String("nats.tls_cert_path")
	s.TLSKeyPath = k.String("nats.tls_key_path")
	s.MaxReconnects = k.Int("nats.max_reconnects")
	if s.MaxReconnects == 0 {
		s.MaxReconnects = DefaultMaxReconnects
	}
	s.ReconnectWait = k.Int("nats.reconnect_wait")
	if s.ReconnectWait == 0 {
		s.ReconnectWait = DefaultReconnectWait
	}
	s.BaseSubject = k.String("nats.base_subject")
	if s.BaseSubject == "" {
		s.BaseSubject = DefaultBaseSubject
	}
	s.BaseQueueName = k.String("nats.base_queue")
	if s.BaseQueueName == "" {
		s.BaseQueueName = DefaultBaseQueueName
	}
	s.EventTimeout = k.Duration("nats.event_timeout")
	if s.EventTimeout <= 0 {
		s.EventTimeout = DefaultEventTimeout
	}

	s.OrchestratorBaseURL = k.String("orchestrator.base_url")
	if s.OrchestratorBaseURL == "" {
		return nil, errors.New("orchestrator.base_url or NGS_ORCHESTRATOR_BASE_URL must be set")
	}
	s.OrchestratorTimeout = k.Duration("orchestrator.timeout")
	if s.OrchestratorTimeout <= 0 {
		s.OrchestratorTimeout = DefaultOrchestratorTimeout
	}
	s.OrchestratorImage = k.String("orchestrator.image")

	s.VoiceURL = k.String("voice.url")
	s.VoiceAPIKey = k.String("voice.api_key")
	s.VoiceAPISecret = k.String("voice.api_secret")
	if s.VoiceAPIKey == "" || s.VoiceAPISecret == "" {
		return nil, errors.New("voice.api_key and voice.api_secret must be set")
	}
	s.CapabilityTTL = k.Duration("capability.ttl")
	if s.CapabilityTTL <= 0 {
		s.CapabilityTTL = DefaultCapabilityTTL
	}

	s.DefaultTierID = k.String("tiers.default")
	if s.DefaultTierID == "" {
		s.DefaultTierID = DefaultTierID
	}

	s.AdminUsers = splitList(k.String("admin.users"))

	// The guard denies undeclared action kinds unless explicitly told not to.
	s.GuardDefaultDeny = true
	if k.Exists("guard.default_deny") {
		s.GuardDefaultDeny = k.Bool("guard.default_deny")
	}
	s.AllowedActionKinds = splitList(k.String("guard.allowed_kinds"))
	if len(s.AllowedActionKinds) == 0 {
		s.AllowedActionKinds = DefaultAllowedActionKinds
	}

	s.UsernameSuffix = k.String("username.suffix")

	return &s, nil
}
