package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type groupGormRepository struct {
	db *gorm.DB
}

// GORM実装
func NewGroupGormRepository(db *gorm.DB) repo.GroupRepository {
	return &groupGormRepository{db: db}
}

func (r *groupGormRepository) Create(ctx context.Context, group *model.Group) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return err
	}
	return nil
}

func (r *groupGormRepository) FindByID(ctx context.Context, groupID string) (*model.Group, error) {
	var g model.Group

	err := r.db.WithContext(ctx).
		Where("id = ?", groupID).
		First(&g).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrGroupNotFound
		}
		return nil, err
	}

	return &g, nil
}

// チャンネル名で1件取得
func (r *groupGormRepository) FindByName(ctx context.Context, groupName string) (*model.Group, error) {
	var g model.Group

	err := r.db.WithContext(ctx).
		Where("group_name = ?", groupName).
		First(&g).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrGroupNotFound
		}
		return nil, err
	}

	return &g, nil
}

func (r *groupGormRepository) List(ctx context.Context, limit int, offset int) ([]model.Group, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var groups []model.Group
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}
