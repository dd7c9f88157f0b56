package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyverse/ngs/config"
	"github.com/cyverse/ngs/internal/admission"
	"github.com/cyverse/ngs/internal/capability"
	"github.com/cyverse/ngs/internal/controllers"
	"github.com/cyverse/ngs/internal/db"
	"github.com/cyverse/ngs/internal/guard"
	"github.com/cyverse/ngs/internal/lifecycle"
	"github.com/cyverse/ngs/internal/metering"
	"github.com/cyverse/ngs/internal/orchestrator"
	"github.com/cyverse/ngs/internal/registry"
	"github.com/cyverse/ngs/logging"
	"github.com/cyverse/ngs/utils"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

var log = logging.ForPackage("server")

func natsSubject(base string, fields ...string) string {
	trimmed := strings.TrimSuffix(
		strings.TrimSuffix(base, ".*"),
		".>",
	)
	addFields := strings.Join(fields, ".")
	return fmt.Sprintf("%s.%s", trimmed, addFields)
}

func natsQueue(qBase string, fields ...string) string {
	return fmt.Sprintf("%s.%s", qBase, strings.Join(fields, "."))
}

func queueSub(conn *nats.Conn, spec *config.Specification, name string, handler nats.MsgHandler) {
	var err error

	subject := natsSubject(spec.BaseSubject, name)
	queue := natsQueue(spec.BaseQueueName, name)

	if _, err = conn.QueueSubscribe(subject, queue, handler); err != nil {
		log.Fatal(err)
	}

	log.Infof("subscribed to %s on queue %s", subject, queue)
}

// natsOptions builds the connection options for NATS. The credential and TLS options are only included when the
// corresponding paths are configured.
func natsOptions(spec *config.Specification) []nats.Option {
	opts := []nats.Option{
		nats.Name(config.ServiceName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(spec.MaxReconnects),
		nats.ReconnectWait(time.Duration(spec.ReconnectWait) * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Errorf("disconnected from nats: %s", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if err := nc.LastError(); err != nil {
				log.Errorf("connection closed: %s", err.Error())
			}
		}),
	}
	if spec.CredsPath != "" {
		opts = append(opts, nats.UserCredentials(spec.CredsPath))
	}
	if spec.CACertPath != "" {
		opts = append(opts, nats.RootCAs(spec.CACertPath))
	}
	if spec.TLSCertPath != "" && spec.TLSKeyPath != "" {
		opts = append(opts, nats.ClientCert(spec.TLSCertPath, spec.TLSKeyPath))
	}
	return opts
}

func InitNATS(spec *config.Specification) *nats.Conn {
	nc, err := nats.Connect(spec.NatsCluster, natsOptions(spec)...)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("configured servers: %s", strings.Join(nc.Servers(), " "))
	log.Infof("connected to NATS host: %s", nc.ConnectedServerName())

	return nc
}

// normalizeUsernames applies owner ID normalization to the configured administrator usernames so that they match
// the normalized identities in requests.
func normalizeUsernames(usernames []string, suffix string) []string {
	result := make([]string, len(usernames))
	for i, username := range usernames {
		result[i] = utils.NormalizeOwnerID(username, suffix)
	}
	return result
}

func Init(spec *config.Specification) {
	log := log.WithFields(logrus.Fields{"context": "server init"})

	e := InitRouter()

	// Establish the database connection.
	log.Info("establishing the database connection")
	sqlDB, gormdb, err := db.Init("postgres", spec.DatabaseURI)
	if err != nil {
		log.Fatalf("service initialization failed: %s", err.Error())
	}
	store := db.NewStore(gormdb)

	minter, err := capability.NewMinter(capability.Config{
		APIKey:    spec.VoiceAPIKey,
		APISecret: spec.VoiceAPISecret,
		TTL:       spec.CapabilityTTL,
	})
	if err != nil {
		log.Fatalf("service initialization failed: %s", err.Error())
	}

	orch, err := orchestrator.NewClient(spec.OrchestratorBaseURL, spec.OrchestratorTimeout)
	if err != nil {
		log.Fatalf("service initialization failed: %s", err.Error())
	}

	admins := lifecycle.NewAdministrators(normalizeUsernames(spec.AdminUsers, spec.UsernameSuffix))
	tiers := registry.New(store, spec.DefaultTierID)

	s := controllers.Server{
		Router:         e,
		DB:             sqlDB,
		GORMDB:         gormdb,
		Service:        "ngs",
		Title:          "CyVerse Node Governance Service",
		Version:        "v1",
		EventTimeout:   spec.EventTimeout,
		UsernameSuffix: spec.UsernameSuffix,
		Registry:       tiers,
		Metering:       metering.NewConsumer(store),
		Admission: admission.New(store, tiers, minter, orch, admission.Config{
			Image:       spec.OrchestratorImage,
			ResourceURL: spec.VoiceURL,
		}),
		Guard:     guard.New(store, guard.NewPolicy(spec.AllowedActionKinds, spec.GuardDefaultDeny)),
		Lifecycle: lifecycle.New(store, orch, admins),
		Admin:     lifecycle.NewAdmin(store, admins),
		Minter:    minter,
	}

	// Register the handlers.
	RegisterHandlers(s)

	// Session events may also arrive over NATS.
	if spec.NATSEnabled() {
		conn := InitNATS(spec)
		s.NATSConn = conn

		queueSub(conn, spec, "sessions.started", s.SessionStartedNATS)
		queueSub(conn, spec, "sessions.ended", s.SessionEndedNATS)
	}

	log.Info("starting the service")
	log.Fatal(e.Start(fmt.Sprintf(":%d", spec.ListenPort)))
}
