package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

const defaultHistoryLimit = 50

// GormStatusChangeRepository 基于 gorm 的审计仓储实现
type GormStatusChangeRepository struct {
	db *gorm.DB
}

// NewStatusChangeRepository 创建审计仓储
func NewStatusChangeRepository(db *gorm.DB) StatusChangeRepository {
	return &GormStatusChangeRepository{db: db}
}

// Create 记录一次状态变更
func (r *GormStatusChangeRepository) Create(ctx context.Context, change *model.StatusChange) error {
	if change.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate status change id: %w", err)
		}
		change.ID = id.String()
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(change).Error
}

// ListByOrderID 查询订单的变更历史; IDs are time-ordered so entries with the
// same timestamp still come back newest first.
func (r *GormStatusChangeRepository) ListByOrderID(ctx context.Context, orderID string, limit int) ([]*model.StatusChange, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var changes []*model.StatusChange
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("changed_at DESC, id DESC").
		Limit(limit).
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Count 统计变更记录数量
func (r *GormStatusChangeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.StatusChange{}).Count(&count).Error
	return count, err
}

// Close 关闭数据库连接
func (r *GormStatusChangeRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema 初始化数据库表结构
func (r *GormStatusChangeRepository) InitSchema() error {
	if err := r.db.AutoMigrate(&model.StatusChange{}); err != nil {
		return fmt.Errorf("failed to migrate order_status_changes table: %w", err)
	}
	return nil
}
