package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/google/uuid"
)

type PostCreateRequest struct {
	Header  string `json:"header"`
	Text    string `json:"text"`
	GroupID string `json:"group_id"`
}

type PostDTO struct {
	ID         string    `json:"id"`
	Header     string    `json:"header"`
	Text       string    `json:"text"`
	UserID     string    `json:"user_id"`
	GroupID    string    `json:"group_id"`
	LikesCount int64     `json:"likes_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type PostUsecase struct {
	posts  repository.PostRepository
	groups repository.GroupRepository
}

func NewPostUsecase(posts repository.PostRepository, groups repository.GroupRepository) *PostUsecase {
	return &PostUsecase{posts: posts, groups: groups}
}

func (u *PostUsecase) Create(ctx context.Context, userID string, req PostCreateRequest) (*PostDTO, error) {
	header := strings.TrimSpace(req.Header)
	if header == "" || req.GroupID == "" {
		return nil, ErrValidation
	}

	//投稿先グループの存在確認
	if _, err := u.groups.FindByID(ctx, req.GroupID); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	post := &model.Post{
		ID:      uuid.NewString(),
		Header:  header,
		Text:    req.Text,
		UserID:  userID,
		GroupID: req.GroupID,
	}

	if err := u.posts.Create(ctx, post); err != nil {
		return nil, ErrInternal
	}

	dto := toPostDTO(post, 0)
	return &dto, nil
}

func (u *PostUsecase) Get(ctx context.Context, postID string) (*PostDTO, error) {
	post, err := u.posts.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	count, err := u.posts.CountLikes(ctx, postID)
	if err != nil {
		return nil, ErrInternal
	}

	dto := toPostDTO(post, count)
	return &dto, nil
}

func (u *PostUsecase) ListByGroup(ctx context.Context, groupID string, limit int, offset int) ([]PostDTO, error) {
	if groupID == "" {
		return nil, ErrValidation
	}

	if _, err := u.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	posts, err := u.posts.ListByGroup(ctx, groupID, limit, offset)
	if err != nil {
		return nil, ErrInternal
	}

	out := make([]PostDTO, 0, len(posts))
	for i := range posts {
		count, err := u.posts.CountLikes(ctx, posts[i].ID)
		if err != nil {
			return nil, ErrInternal
		}
		out = append(out, toPostDTO(&posts[i], count))
	}
	return out, nil
}

func toPostDTO(p *model.Post, likes int64) PostDTO {
	return PostDTO{
		ID:         p.ID,
		Header:     p.Header,
		Text:       p.Text,
		UserID:     p.UserID,
		GroupID:    p.GroupID,
		LikesCount: likes,
		CreatedAt:  p.CreatedAt,
	}
}
