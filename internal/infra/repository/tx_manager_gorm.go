package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	users         repo.UserRepository
	refreshTokens repo.RefreshTokenRepository
	posts         repo.PostRepository
	groups        repo.GroupRepository
}

func (r *txReposGorm) Users() repo.UserRepository                 { return r.users }
func (r *txReposGorm) RefreshTokens() repo.RefreshTokenRepository { return r.refreshTokens }
func (r *txReposGorm) Posts() repo.PostRepository                 { return r.posts }
func (r *txReposGorm) Groups() repo.GroupRepository               { return r.groups }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			users:         NewUserGormRepository(tx),
			refreshTokens: NewRefreshTokenRepository(tx),
			posts:         NewPostGormRepository(tx),
			groups:        NewGroupGormRepository(tx),
		}
		return fn(r)
	})
}
