package realtime

import (
	"context"

	"app/internal/repository"
)

// MembershipCoordinatorはjoin/leaveの入り口。
// グループがDBに存在することを確認してからRegistryを触る。
// どちらも冪等（2回joinしても2回目はfalse）。
type MembershipCoordinator struct {
	groups repository.GroupRepository
	reg    *Registry
}

func NewMembershipCoordinator(groups repository.GroupRepository, reg *Registry) *MembershipCoordinator {
	return &MembershipCoordinator{groups: groups, reg: reg}
}

// Joinは接続をチャンネルに参加させる。
// 存在しないグループ名はrepository.ErrGroupNotFound。
func (m *MembershipCoordinator) Join(ctx context.Context, groupName string, connID string) (bool, error) {
	if _, err := m.groups.FindByName(ctx, groupName); err != nil {
		return false, err
	}
	return m.reg.Join(groupName, connID)
}

// Leaveは接続をチャンネルから抜く。居なかったらfalse。
func (m *MembershipCoordinator) Leave(ctx context.Context, groupName string, connID string) (bool, error) {
	return m.reg.Leave(groupName, connID), nil
}
