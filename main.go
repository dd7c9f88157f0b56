package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/cyverse-de/go-mod/cfg"
	"github.com/cyverse/ngs/config"
	"github.com/cyverse/ngs/logging"
	"github.com/cyverse/ngs/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logging.ForPackage("main")

// runSchemaMigrations brings the database schema up to date using the migrations in migrationsDir. When reinit is
// set, every down migration runs first, which drops all governance state.
func runSchemaMigrations(dbURI, migrationsDir string, reinit bool) error {
	log := log.WithFields(logrus.Fields{"context": "schema migrations"})

	wrapMsg := "unable to run the schema migrations"

	absDir, err := filepath.Abs(migrationsDir)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	migrationsURI := fmt.Sprintf("file://%s", absDir)

	m, err := migrate.New(migrationsURI, dbURI)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	defer m.Close()

	if reinit {
		log.Warn("running the down database migrations")
		err = m.Down()
		if err != nil && err != migrate.ErrNoChange {
			return errors.Wrap(err, wrapMsg)
		}
	}

	log.Info("running the up database migrations")
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, wrapMsg)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return errors.Wrap(err, wrapMsg)
	}
	log.Infof("schema version %d (dirty: %t)", version, dirty)

	return nil
}

func main() {
	var (
		err error

		configPath    = flag.String("config", cfg.DefaultConfigPath, "Path to the config file")
		dotEnvPath    = flag.String("dotenv-path", cfg.DefaultDotEnvPath, "Path to the dotenv file")
		envPrefix     = flag.String("env-prefix", "NGS_", "The prefix for environment variables")
		logLevel      = flag.String("log-level", "info", "One of trace, debug, info, warn, error, fatal, or panic.")
		migrationsDir = flag.String("migrations-dir", "migrations", "Path to the schema migrations")
	)

	flag.Parse()
	logging.SetupLogging(*logLevel)

	log := log.WithFields(logrus.Fields{"context": "main"})

	spec, err := config.LoadConfig(*envPrefix, *configPath, *dotEnvPath)
	if err != nil {
		log.Fatalf("unable to load the configuration: %s", err.Error())
	}

	log.WithFields(logrus.Fields{
		"default_tier":   spec.DefaultTierID,
		"nats_enabled":   spec.NATSEnabled(),
		"guard_deny":     spec.GuardDefaultDeny,
		"allowed_kinds":  spec.AllowedActionKinds,
		"administrators": len(spec.AdminUsers),
	}).Info("loaded the configuration")

	if spec.RunSchemaMigrations {
		err = runSchemaMigrations(spec.DatabaseURI, *migrationsDir, spec.ReinitDB)
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	server.Init(spec)
}
