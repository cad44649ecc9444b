package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrPostNotFound = errors.New("post not found")

// 投稿といいねの保存・取得を約束
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, postID string) (*model.Post, error)
	ListByGroup(ctx context.Context, groupID string, limit int, offset int) ([]model.Post, error)

	// FindByIDForUpdateは行ロック付きで取得する（Tx内で使う）。
	// いいねのread-modify-writeを投稿単位で直列化するため。
	FindByIDForUpdate(ctx context.Context, postID string) (*model.Post, error)

	// AddLikeはいいねを1件追加する。すでにあればfalse。
	AddLike(ctx context.Context, postID string, userID string) (bool, error)
	// RemoveLikeはいいねを1件削除する。なければfalse。
	RemoveLike(ctx context.Context, postID string, userID string) (bool, error)
	IsLiked(ctx context.Context, postID string, userID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int64, error)
}
