package db

import (
	"database/sql"

	"github.com/cyverse-de/dbutil"
	"github.com/pkg/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	_ "github.com/lib/pq"
)

// Init establishes the database connection and wraps it in a GORM database handle with tracing enabled.
func Init(driver, dbURI string) (*sql.DB, *gorm.DB, error) {
	wrapMsg := "unable to initialize the database"

	connector, err := dbutil.NewDefaultConnector("1m")
	if err != nil {
		return nil, nil, errors.Wrap(err, wrapMsg)
	}

	sqlDB, err := connector.Connect(driver, dbURI)
	if err != nil {
		return nil, nil, errors.Wrap(err, wrapMsg)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, wrapMsg)
	}

	if err = gormDB.Use(otelgorm.NewPlugin()); err != nil {
		return nil, nil, errors.Wrap(err, wrapMsg)
	}

	return sqlDB, gormDB, nil
}
