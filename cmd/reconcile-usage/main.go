package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/cyverse/ngs/internal/db"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// tolerance is the largest difference in minutes between a node's counter and its session total that is ignored.
const tolerance = 1e-6

type Config struct {
	DatabaseURI string
}

// loadConfig loads configuration settings from the environment. We're using koanf directly here so that the
// configuration files don't have to be present to run the utility.
func loadConfig() (*Config, error) {
	k := koanf.New(".")

	// Load the configuration settings from the environment.
	err := k.Load(
		env.Provider("NGS_", ".",
			func(s string) string {
				return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "NGS_")), "_", ".", -1)
			},
		),
		nil,
	)
	if err != nil {
		return nil, err
	}

	// Verify that the database URI is specified.
	databaseURI := k.String("database.uri")
	if databaseURI == "" {
		return nil, fmt.Errorf("NGS_DATABASE_URI must be defined")
	}

	return &Config{DatabaseURI: databaseURI}, nil
}

// Discrepancy describes a node whose usage counter does not match the total of its closed sessions.
type Discrepancy struct {
	NodeID        string
	CounterValue  float64
	SessionTotal  float64
	BelowSessions bool
}

// findDiscrepancy compares the usage counter of a single node with the total of its closed sessions. It returns
// nil if the two agree.
func findDiscrepancy(ctx context.Context, tx *gorm.DB, nodeID string) (*Discrepancy, error) {
	node, err := db.GetNode(ctx, tx, nodeID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}

	total, err := db.SumClosedSessionMinutes(ctx, tx, nodeID)
	if err != nil {
		return nil, err
	}

	if math.Abs(total-node.AccumulatedUsageMinutes) <= tolerance {
		return nil, nil
	}

	return &Discrepancy{
		NodeID:        nodeID,
		CounterValue:  node.AccumulatedUsageMinutes,
		SessionTotal:  total,
		BelowSessions: node.AccumulatedUsageMinutes < total,
	}, nil
}

// reconcile reports every node whose counter disagrees with its sessions. When fix is true, counters that are
// lower than the session total are raised to match. Counters are never lowered because an administrator may have
// reset usage after the sessions were recorded.
func reconcile(ctx context.Context, tx *gorm.DB, fix bool) ([]*Discrepancy, error) {
	nodeIDs, err := db.ListAllNodeIDs(ctx, tx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list the nodes")
	}

	discrepancies := make([]*Discrepancy, 0)
	for _, nodeID := range nodeIDs {
		d, err := findDiscrepancy(ctx, tx, nodeID)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to check the usage of node %s", nodeID)
		}
		if d == nil {
			continue
		}
		discrepancies = append(discrepancies, d)

		if fix && d.BelowSessions {
			err = db.IncrementNodeUsage(ctx, tx, nodeID, d.SessionTotal-d.CounterValue)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to fix the usage of node %s", nodeID)
			}
		}
	}

	return discrepancies, nil
}

func main() {
	fix := flag.Bool("fix", false, "Raise usage counters that are lower than their session totals")
	flag.Parse()

	// Load the configuration.
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("unable to load the configuration: %s", err)
	}

	// Establish the database connection.
	_, gormdb, err := db.Init("postgres", cfg.DatabaseURI)
	if err != nil {
		log.Fatalf("unable to connect to the database: %s", err)
	}

	// Run the actual updates in a transaction.
	err = gormdb.Transaction(func(tx *gorm.DB) error {
		discrepancies, err := reconcile(context.Background(), tx, *fix)
		if err != nil {
			return err
		}

		for _, d := range discrepancies {
			fmt.Printf(
				"node %s: counter %.3f minutes, sessions %.3f minutes\n",
				d.NodeID, d.CounterValue, d.SessionTotal,
			)
		}
		fmt.Printf("%d of the nodes need attention\n", len(discrepancies))
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
}
