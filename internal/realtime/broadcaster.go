package realtime

import (
	"app/internal/logging"
	"app/internal/metrics"
)

// Broadcasterはグループ単位のファンアウト。
// 配信はbest effort（接続ごとに最大1回、確認も再送もしない）。
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Broadcastはグループの現メンバーのスナップショットに向けて配信する。
// 配信中に切断された接続への送信失敗はエラーではなく単なるスキップ。
// 届けられた接続数を返す。
func (b *Broadcaster) Broadcast(groupName string, event string, payload interface{}) int {
	senders := b.reg.groupSenders(groupName)
	if len(senders) == 0 {
		return 0
	}

	ev := Event{Event: event, Data: payload}

	delivered := 0
	for _, s := range senders {
		if s.Send(ev) {
			delivered++
		}
	}

	metrics.BroadcastDelivered.WithLabelValues(event).Add(float64(delivered))

	logging.Debug().
		Str("group", groupName).
		Str("event", event).
		Int("delivered", delivered).
		Int("members", len(senders)).
		Msg("broadcast")

	return delivered
}
