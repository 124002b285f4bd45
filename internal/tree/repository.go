package tree

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Repository is the tree store: node records keyed by member id plus the
// pointer mirror kept on members.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.TreeNode, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TreeNode, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, node *models.TreeNode) error
	ClaimSlot(ctx context.Context, parentID uuid.UUID, side enums.Side, childID uuid.UUID) (bool, error)
	MirrorPlacement(ctx context.Context, parentID *uuid.UUID, side *enums.Side, childID uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) error
	MembersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Member, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tree store bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.TreeNode, error) {
	var node models.TreeNode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&node).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *repository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TreeNode, error) {
	out := make(map[uuid.UUID]models.TreeNode, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var nodes []models.TreeNode
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&nodes).Error; err != nil {
		return nil, err
	}
	for _, node := range nodes {
		out[node.ID] = node
	}
	return out, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TreeNode{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) Create(ctx context.Context, node *models.TreeNode) error {
	return r.db.WithContext(ctx).Create(node).Error
}

// ClaimSlot writes childID into the parent's slot only while that slot is
// still empty. A false result means another writer got there first.
func (r *repository) ClaimSlot(ctx context.Context, parentID uuid.UUID, side enums.Side, childID uuid.UUID) (bool, error) {
	column, err := slotColumn(side)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Model(&models.TreeNode{}).
		Where("id = ? AND "+column+" IS NULL", parentID).
		UpdateColumn(column, childID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MirrorPlacement copies a placement onto the members table. A nil parent
// records the root.
func (r *repository) MirrorPlacement(ctx context.Context, parentID *uuid.UUID, side *enums.Side, childID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Member{}).
		Where("id = ?", childID).
		Updates(map[string]any{"parent_id": parentID, "placement_side": side}).Error; err != nil {
		return err
	}
	if parentID == nil || side == nil {
		return nil
	}
	column, err := slotColumn(*side)
	if err != nil {
		return err
	}
	return db.Model(&models.Member{}).Where("id = ?", *parentID).UpdateColumn(column, childID).Error
}

func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) error {
	result := r.db.WithContext(ctx).Model(&models.TreeNode{}).Where("id = ?", id).UpdateColumn("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MembersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Member, error) {
	out := make(map[uuid.UUID]models.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var members []models.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	for _, member := range members {
		out[member.ID] = member
	}
	return out, nil
}

func slotColumn(side enums.Side) (string, error) {
	switch side {
	case enums.SideLeft:
		return "left_id", nil
	case enums.SideRight:
		return "right_id", nil
	default:
		return "", fmt.Errorf("invalid side %q", side)
	}
}
