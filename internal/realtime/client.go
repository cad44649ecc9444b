package realtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"app/internal/logging"
	"app/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Clientはwebsocket接続1本とRegistryの仲介。
// 送信はバッファ付きチャネル経由。詰まっている接続には送らず落とす。
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	reg    *Registry
	send   chan Event
	done   chan struct{}
}

func NewClient(reg *Registry, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		reg:    reg,
		send:   make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// IDは接続ID。クライアントはこれをjoin/leaveリクエストに載せる。
func (c *Client) ID() string {
	return c.id
}

// Sendはノンブロッキング。バッファが一杯なら落としてfalse。
func (c *Client) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Startは読み書きのポンプを起動する。
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPumpは受信側。サーバーへの操作はHTTP側で受けるので
// ここでは接続の生存確認だけを見る。終了時にRegistryから抜く。
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.reg.OnDisconnect(c.id)
		_ = c.conn.Close()
		metrics.WebsocketConnections.Dec()
		logging.Debug().Str("conn_id", c.id).Str("user_id", c.userID).Msg("websocket closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("conn_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// writePumpは送信側。pingも打つ。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
