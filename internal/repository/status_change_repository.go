package repository

import (
	"context"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

// StatusChangeRepository 状态变更审计仓储接口
type StatusChangeRepository interface {
	// Create 记录一次状态变更
	Create(ctx context.Context, change *model.StatusChange) error

	// ListByOrderID 查询订单的变更历史，最新在前
	ListByOrderID(ctx context.Context, orderID string, limit int) ([]*model.StatusChange, error)

	// Count 统计变更记录数量
	Count(ctx context.Context) (int64, error)

	// InitSchema 初始化数据库表结构
	InitSchema() error

	// Close 关闭数据库连接
	Close() error
}
