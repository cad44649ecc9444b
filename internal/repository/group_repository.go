package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrGroupNotFound = errors.New("group not found")

// グループの保存・取得を約束
type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	FindByID(ctx context.Context, groupID string) (*model.Group, error)
	//チャンネル名（group_name）から1件取得する。
	FindByName(ctx context.Context, groupName string) (*model.Group, error)
	List(ctx context.Context, limit int, offset int) ([]model.Group, error)
}
