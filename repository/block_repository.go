package repository

import (
	"context"
	"errors"
	"fmt"

	"dabeat/model"

	"gorm.io/gorm"
)

// BlockRepository 仪表盘内容块数据访问接口
type BlockRepository interface {
	CreateBlock(ctx context.Context, block *model.DynamicBlock) error
	GetBlockByID(ctx context.Context, id int64) (*model.DynamicBlock, error)
	UpdateBlock(ctx context.Context, block *model.DynamicBlock) error
	DeleteBlock(ctx context.Context, id int64) (bool, error)
	ListBlocks(ctx context.Context) ([]*model.DynamicBlock, error)
}

type gormBlockRepository struct {
	db *gorm.DB
}

// NewGormBlockRepository 创建内容块仓库
func NewGormBlockRepository(db *gorm.DB) BlockRepository {
	return &gormBlockRepository{db: db}
}

func (r *gormBlockRepository) CreateBlock(ctx context.Context, block *model.DynamicBlock) error {
	if err := r.db.WithContext(ctx).Create(block).Error; err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}

func (r *gormBlockRepository) GetBlockByID(ctx context.Context, id int64) (*model.DynamicBlock, error) {
	var block model.DynamicBlock
	if err := r.db.WithContext(ctx).First(&block, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get block %d: %w", id, err)
	}
	return &block, nil
}

func (r *gormBlockRepository) UpdateBlock(ctx context.Context, block *model.DynamicBlock) error {
	if err := r.db.WithContext(ctx).Save(block).Error; err != nil {
		return fmt.Errorf("failed to update block %d: %w", block.ID, err)
	}
	return nil
}

// DeleteBlock reports false when the block did not exist.
func (r *gormBlockRepository) DeleteBlock(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.DynamicBlock{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete block %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListBlocks returns all blocks, oldest first.
func (r *gormBlockRepository) ListBlocks(ctx context.Context) ([]*model.DynamicBlock, error) {
	var blocks []*model.DynamicBlock
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	return blocks, nil
}
