package usecase

import (
	"context"
	"errors"
	"strings"

	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/google/uuid"
)

type GroupCreateRequest struct {
	GroupName string `json:"group_name"`
}

type GroupUsecase struct {
	groups repository.GroupRepository
}

func NewGroupUsecase(groups repository.GroupRepository) *GroupUsecase {
	return &GroupUsecase{groups: groups}
}

func (u *GroupUsecase) Create(ctx context.Context, ownerID string, req GroupCreateRequest) (*model.Group, error) {
	name := strings.TrimSpace(req.GroupName)
	if name == "" {
		return nil, ErrValidation
	}

	//同名グループは1つだけ
	if _, err := u.groups.FindByName(ctx, name); err == nil {
		return nil, ErrConflict
	}

	group := &model.Group{
		ID:        uuid.NewString(),
		GroupName: name,
		OwnerID:   ownerID,
	}

	if err := u.groups.Create(ctx, group); err != nil {
		return nil, ErrInternal
	}

	return group, nil
}

func (u *GroupUsecase) Get(ctx context.Context, groupID string) (*model.Group, error) {
	group, err := u.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}
	return group, nil
}

func (u *GroupUsecase) List(ctx context.Context, limit int, offset int) ([]model.Group, error) {
	groups, err := u.groups.List(ctx, limit, offset)
	if err != nil {
		return nil, ErrInternal
	}
	return groups, nil
}
