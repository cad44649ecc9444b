package usecase

import (
	"context"
	"errors"
	"sync"

	"app/internal/repository"
)

// realtime.Broadcasterの約束。usecaseはtransportを知らない。
type GroupBroadcaster interface {
	Broadcast(groupName string, event string, payload interface{}) int
}

// "Like"イベントで配るペイロード。
type LikeEventPayload struct {
	PostID     string `json:"post_id"`
	LikesCount int64  `json:"likes_count"`
}

type LikeToggleResponse struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// LikeUsecaseはいいねのトグルと配信。
// 同じ投稿への同時トグルで更新が消えないように、
// プロセス内の投稿別mutex + DBの行ロックで二重に直列化する。
type LikeUsecase struct {
	tm          repository.TransactionManager
	posts       repository.PostRepository
	broadcaster GroupBroadcaster

	mu    sync.Mutex
	locks map[string]*sync.Mutex // postID -> lock
}

func NewLikeUsecase(
	tm repository.TransactionManager,
	posts repository.PostRepository,
	broadcaster GroupBroadcaster,
) *LikeUsecase {
	return &LikeUsecase{
		tm:          tm,
		posts:       posts,
		broadcaster: broadcaster,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Toggleはいいねの付け外し（あれば外す、なければ付ける）。
// commit後に投稿が属するグループへ "Like" イベントを配信する。
// 配信はbest effortで、失敗してもトグル自体は成功のまま。
func (u *LikeUsecase) Toggle(ctx context.Context, postID string, userID string) (*LikeToggleResponse, error) {
	if postID == "" || userID == "" {
		return nil, ErrValidation
	}

	lock := u.postLock(postID)
	lock.Lock()
	defer lock.Unlock()

	var (
		liked     bool
		count     int64
		groupName string
	)

	err := u.tm.WithinTx(ctx, func(r repository.TxRepos) error {
		//行ロックで同じ投稿のread-modify-writeを直列化
		post, err := r.Posts().FindByIDForUpdate(ctx, postID)
		if err != nil {
			return err
		}

		group, err := r.Groups().FindByID(ctx, post.GroupID)
		if err != nil {
			return err
		}
		groupName = group.GroupName

		already, err := r.Posts().IsLiked(ctx, postID, userID)
		if err != nil {
			return err
		}

		if already {
			if _, err := r.Posts().RemoveLike(ctx, postID, userID); err != nil {
				return err
			}
			liked = false
		} else {
			if _, err := r.Posts().AddLike(ctx, postID, userID); err != nil {
				return err
			}
			liked = true
		}

		count, err = r.Posts().CountLikes(ctx, postID)
		return err
	})

	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) || errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	//commit済みの件数を配る
	u.broadcaster.Broadcast(groupName, "Like", LikeEventPayload{
		PostID:     postID,
		LikesCount: count,
	})

	return &LikeToggleResponse{Liked: liked, LikesCount: count}, nil
}

// IsLikedは自分がいいね済みかどうか。
func (u *LikeUsecase) IsLiked(ctx context.Context, postID string, userID string) (bool, error) {
	if postID == "" || userID == "" {
		return false, ErrValidation
	}

	if _, err := u.posts.FindByID(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return false, ErrNotFound
		}
		return false, ErrInternal
	}

	liked, err := u.posts.IsLiked(ctx, postID, userID)
	if err != nil {
		return false, ErrInternal
	}
	return liked, nil
}

// 投稿別のmutexを貸し出す。
func (u *LikeUsecase) postLock(postID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()

	lock, ok := u.locks[postID]
	if !ok {
		lock = &sync.Mutex{}
		u.locks[postID] = lock
	}
	return lock
}
