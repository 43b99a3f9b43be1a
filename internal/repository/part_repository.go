package repository

import (
	"context"
	"errors"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/model/entity"
	"gorm.io/gorm"
)

func allEntities() []interface{} {
	return []interface{}{
		&entity.Part{},
		&entity.Ownership{},
		&entity.OperatorApproval{},
	}
}

// PartRepository 零件仓库
type PartRepository struct {
	db *gorm.DB
}

// NewPartRepository 创建零件仓库
func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

// FindByID 根据ID查找零件
func (r *PartRepository) FindByID(ctx context.Context, id uint64) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// FindByIDs 批量查找零件，返回ID到零件的映射
func (r *PartRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*entity.Part, error) {
	var parts []entity.Part
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&parts).Error
	if err != nil {
		return nil, err
	}

	result := make(map[uint64]*entity.Part, len(parts))
	for i := range parts {
		result[parts[i].ID] = &parts[i]
	}
	return result, nil
}

// Create 创建零件
func (r *PartRepository) Create(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

// Update 更新零件
func (r *PartRepository) Update(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// Delete 删除零件记录
func (r *PartRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.Part{}).Error
}

// List 分页查询零件列表
func (r *PartRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Part, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Part{})

	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		query = query.Where("name ILIKE ? OR manufacturer ILIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}
	if lockStatus, ok := filters["lock_status"].(string); ok && lockStatus != "" {
		query = query.Where("lock_status = ?", lockStatus)
	}
	if partNumber, ok := filters["part_number"].(int64); ok && partNumber != 0 {
		query = query.Where("part_number = ?", partNumber)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var parts []entity.Part
	err := query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&parts).Error
	if err != nil {
		return nil, 0, err
	}

	return parts, total, nil
}

// ListAll 按ID顺序返回全部零件（导出用）
func (r *PartRepository) ListAll(ctx context.Context) ([]entity.Part, error) {
	var parts []entity.Part
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&parts).Error
	return parts, err
}
