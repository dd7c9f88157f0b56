package db

import (
	"context"
	"fmt"

	"github.com/cyverse/ngs/internal/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNodeNotFound is returned by update operations that did not match any node.
var ErrNodeNotFound = errors.New("node not found")

// GetNode looks up the node with the given identifier. A nil node is returned if the node doesn't exist.
func GetNode(ctx context.Context, db *gorm.DB, nodeID string) (*model.Node, error) {
	wrapMsg := fmt.Sprintf("unable to look up node '%s'", nodeID)

	var node model.Node
	err := db.WithContext(ctx).Where("node_id = ?", nodeID).First(&node).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return &node, nil
}

// InsertNode inserts a node, relying on the primary key to reject duplicates. If another request inserted the same
// node first then the existing row is loaded and returned instead. The Boolean return value indicates whether or not
// this call created the row.
func InsertNode(ctx context.Context, db *gorm.DB, node *model.Node) (*model.Node, bool, error) {
	wrapMsg := fmt.Sprintf("unable to insert node '%s'", node.ID)

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(node)
	if result.Error != nil {
		return nil, false, errors.Wrap(result.Error, wrapMsg)
	}
	if result.RowsAffected == 1 {
		return node, true, nil
	}

	// Somebody else won the race; use their row.
	existing, err := GetNode(ctx, db, node.ID)
	if err != nil {
		return nil, false, errors.Wrap(err, wrapMsg)
	}
	if existing == nil {
		return nil, false, errors.Wrap(ErrNodeNotFound, wrapMsg)
	}
	return existing, false, nil
}

// CountActiveNodes counts the non-suspended nodes belonging to an owner, excluding the node with the given ID.
func CountActiveNodes(ctx context.Context, db *gorm.DB, ownerID, excludeNodeID string) (int64, error) {
	wrapMsg := fmt.Sprintf("unable to count the active nodes for '%s'", ownerID)

	var count int64
	err := db.WithContext(ctx).
		Model(&model.Node{}).
		Where("owner_id = ?", ownerID).
		Where("is_suspended = ?", false).
		Where("node_id <> ?", excludeNodeID).
		Count(&count).
		Error
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return count, nil
}

// ListNodes lists the nodes belonging to an owner.
func ListNodes(ctx context.Context, db *gorm.DB, ownerID string) ([]model.Node, error) {
	wrapMsg := fmt.Sprintf("unable to list the nodes for '%s'", ownerID)

	nodes := make([]model.Node, 0)
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at asc").
		Find(&nodes).
		Error
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return nodes, nil
}

// ListAllNodeIDs lists the identifiers of every node in the database.
func ListAllNodeIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&model.Node{}).Order("node_id").Pluck("node_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "unable to list node identifiers")
	}
	return ids, nil
}

// updateNodeColumn sets a single column on a node, returning ErrNodeNotFound if no row matched.
func updateNodeColumn(ctx context.Context, db *gorm.DB, nodeID, column string, value any) error {
	wrapMsg := fmt.Sprintf("unable to update %s for node '%s'", column, nodeID)

	result := db.WithContext(ctx).
		Model(&model.Node{}).
		Where("node_id = ?", nodeID).
		UpdateColumn(column, value)
	if result.Error != nil {
		return errors.Wrap(result.Error, wrapMsg)
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(ErrNodeNotFound, wrapMsg)
	}

	return nil
}

// SetContainerRef records the container currently running a node. A nil reference clears the column.
func SetContainerRef(ctx context.Context, db *gorm.DB, nodeID string, containerRef *string) error {
	if containerRef == nil {
		return updateNodeColumn(ctx, db, nodeID, "container_ref", gorm.Expr("NULL"))
	}
	return updateNodeColumn(ctx, db, nodeID, "container_ref", *containerRef)
}

// AttachContainer records the container running a node as long as the node has not been suspended. It returns
// false if no unsuspended node matched, in which case nothing was written.
func AttachContainer(ctx context.Context, db *gorm.DB, nodeID, containerRef string) (bool, error) {
	wrapMsg := fmt.Sprintf("unable to attach container '%s' to node '%s'", containerRef, nodeID)

	result := db.WithContext(ctx).
		Model(&model.Node{}).
		Where("node_id = ?", nodeID).
		Where("is_suspended = ?", false).
		UpdateColumn("container_ref", containerRef)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, wrapMsg)
	}

	return result.RowsAffected > 0, nil
}

// SuspendNode unconditionally marks a node as suspended. Concurrent calls converge on the same state.
func SuspendNode(ctx context.Context, db *gorm.DB, nodeID string) error {
	return updateNodeColumn(ctx, db, nodeID, "is_suspended", true)
}

// ReactivateNode clears the suspension flag for a node. This is an administrative operation only.
func ReactivateNode(ctx context.Context, db *gorm.DB, nodeID string) error {
	return updateNodeColumn(ctx, db, nodeID, "is_suspended", false)
}

// ResetNodeUsage sets the accumulated usage for a node back to zero. This is an administrative operation only.
func ResetNodeUsage(ctx context.Context, db *gorm.DB, nodeID string) error {
	return updateNodeColumn(ctx, db, nodeID, "accumulated_usage_minutes", 0)
}

// IncrementNodeUsage atomically adds to the accumulated usage for a node. The addition is performed by the database
// in a single UPDATE statement so that concurrent increments are never lost.
func IncrementNodeUsage(ctx context.Context, db *gorm.DB, nodeID string, minutes float64) error {
	return updateNodeColumn(
		ctx, db, nodeID,
		"accumulated_usage_minutes",
		gorm.Expr("accumulated_usage_minutes + ?", minutes),
	)
}
