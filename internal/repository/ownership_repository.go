package repository

import (
	"context"
	"errors"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/model/entity"
	"gorm.io/gorm"
)

// OwnershipRepository 所有权登记仓库
type OwnershipRepository struct {
	db *gorm.DB
}

// NewOwnershipRepository 创建所有权登记仓库
func NewOwnershipRepository(db *gorm.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

// FindByPartID 查找零件的所有权记录
func (r *OwnershipRepository) FindByPartID(ctx context.Context, partID uint64) (*entity.Ownership, error) {
	var own entity.Ownership
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		First(&own).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &own, nil
}

// OwnerOf 返回零件的当前持有账户
func (r *OwnershipRepository) OwnerOf(ctx context.Context, partID uint64) (string, error) {
	own, err := r.FindByPartID(ctx, partID)
	if err != nil {
		return "", err
	}
	return own.Owner, nil
}

// Create 登记新零件的所有权
func (r *OwnershipRepository) Create(ctx context.Context, own *entity.Ownership) error {
	return r.db.WithContext(ctx).Create(own).Error
}

// Update 更新所有权记录
func (r *OwnershipRepository) Update(ctx context.Context, own *entity.Ownership) error {
	return r.db.WithContext(ctx).Save(own).Error
}

// Delete 注销零件的所有权记录
func (r *OwnershipRepository) Delete(ctx context.Context, partID uint64) error {
	return r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Delete(&entity.Ownership{}).Error
}

// HasOperator 判断 operator 是否持有 owner 的账户级授权
func (r *OwnershipRepository) HasOperator(ctx context.Context, owner, operator string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.OperatorApproval{}).
		Where("owner = ? AND operator = ?", owner, operator).
		Count(&count).Error
	return count > 0, err
}

// SetOperator 授予账户级授权（幂等）
func (r *OwnershipRepository) SetOperator(ctx context.Context, owner, operator string) error {
	exists, err := r.HasOperator(ctx, owner, operator)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entity.OperatorApproval{
		Owner:    owner,
		Operator: operator,
	}).Error
}

// RemoveOperator 撤销账户级授权
func (r *OwnershipRepository) RemoveOperator(ctx context.Context, owner, operator string) error {
	return r.db.WithContext(ctx).
		Where("owner = ? AND operator = ?", owner, operator).
		Delete(&entity.OperatorApproval{}).Error
}
