package realtime

import (
	"errors"
	"sync"
)

var (
	//同じconnection idの二重登録。呼び出し側のバグ。
	ErrDuplicateConn = errors.New("connection already registered")
	//未登録のconnection idへの操作。
	ErrConnNotFound = errors.New("connection not found")
)

// 配信イベント。
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Senderは1本の生きた接続へイベントを押し込む口。
// ブロックしてはいけない。落とした場合はfalseを返す。
type Sender interface {
	Send(ev Event) bool
}

type connection struct {
	userID string
	sender Sender
	groups map[string]struct{}
}

// Registryは「生きている接続」と「グループ所属」のインメモリ対応表。
// プロセス内で共有される唯一の可変状態なので、全操作を1つのRWMutexで守る。
// ロックの中でI/Oはしない。
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*connection          // connID -> connection
	groups map[string]map[string]struct{} // groupName -> connIDの集合
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*connection),
		groups: make(map[string]map[string]struct{}),
	}
}

// OnConnectは新しい接続を登録する。connIDの重複はエラー。
func (r *Registry) OnConnect(connID string, userID string, sender Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return ErrDuplicateConn
	}

	r.conns[connID] = &connection{
		userID: userID,
		sender: sender,
		groups: make(map[string]struct{}),
	}
	return nil
}

// OnDisconnectは接続を削除し、所属していた全グループからも同時に抜く。
// すでに削除済みなら何もしない。
func (r *Registry) OnDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return
	}

	for name := range conn.groups {
		if members, ok := r.groups[name]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.groups, name)
			}
		}
	}

	delete(r.conns, connID)
}

// Joinは接続をグループに入れる。初参加ならtrue、すでに居たらfalse。
// グループは初参加時に暗黙に作られる。
func (r *Registry) Join(groupName string, connID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return false, ErrConnNotFound
	}

	members, ok := r.groups[groupName]
	if !ok {
		members = make(map[string]struct{})
		r.groups[groupName] = members
	}

	if _, ok := members[connID]; ok {
		return false, nil
	}

	members[connID] = struct{}{}
	conn.groups[groupName] = struct{}{}
	return true, nil
}

// Leaveは接続をグループから抜く。居たらtrue。
// 最後の1人が抜けたらグループのエントリごと消す。
func (r *Registry) Leave(groupName string, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[groupName]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.groups, groupName)
	}

	if conn, ok := r.conns[connID]; ok {
		delete(conn.groups, groupName)
	}
	return true
}

// MembersOfはその時点のメンバー一覧のコピーを返す。
// 内部mapは渡さない。呼び出し側のイテレーション中にjoin/leaveされても壊れない。
func (r *Registry) MembersOf(groupName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.groups[groupName]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// UserOfは接続の持ち主のユーザーIDを返す。
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return conn.userID, true
}

// ConnCountは登録中の接続数（メトリクス用）。
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// groupSendersはブロードキャスト用にSenderのスナップショットを返す。
// 送信I/Oはロックの外でやる。
func (r *Registry) groupSenders(groupName string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.groups[groupName]
	if !ok {
		return nil
	}

	out := make([]Sender, 0, len(members))
	for id := range members {
		if conn, ok := r.conns[id]; ok {
			out = append(out, conn.sender)
		}
	}
	return out
}
