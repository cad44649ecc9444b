package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type postGormRepository struct {
	db *gorm.DB
}

// GORM実装
func NewPostGormRepository(db *gorm.DB) repo.PostRepository {
	return &postGormRepository{db: db}
}

func (r *postGormRepository) Create(ctx context.Context, post *model.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return err
	}
	return nil
}

func (r *postGormRepository) FindByID(ctx context.Context, postID string) (*model.Post, error) {
	var p model.Post

	err := r.db.WithContext(ctx).
		Where("id = ?", postID).
		First(&p).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrPostNotFound
		}
		return nil, err
	}

	return &p, nil
}

// SELECT ... FOR UPDATE で取得する。Tx内専用。
// 同じ投稿へのいいね更新を投稿単位で直列化するためのロック。
func (r *postGormRepository) FindByIDForUpdate(ctx context.Context, postID string) (*model.Post, error) {
	var p model.Post

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", postID).
		First(&p).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrPostNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *postGormRepository) ListByGroup(ctx context.Context, groupID string, limit int, offset int) ([]model.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var posts []model.Post
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// いいねを1件追加。(post_id, user_id)のuniqueに当たったらfalse。
func (r *postGormRepository) AddLike(ctx context.Context, postID string, userID string) (bool, error) {
	like := model.PostLike{PostID: postID, UserID: userID}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// いいねを1件削除。なければfalse。
func (r *postGormRepository) RemoveLike(ctx context.Context, postID string, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&model.PostLike{})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *postGormRepository) IsLiked(ctx context.Context, postID string, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postGormRepository) CountLikes(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PostLike{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
