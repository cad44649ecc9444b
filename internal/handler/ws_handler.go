package handler

import (
	"net/http"
	"strings"

	"app/internal/logging"
	"app/internal/metrics"
	"app/internal/realtime"
	"app/internal/token"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type WsHandler struct {
	vault    *token.Vault
	registry *realtime.Registry
	upgrader websocket.Upgrader
}

func NewWsHandler(vault *token.Vault, registry *realtime.Registry) *WsHandler {
	return &WsHandler{
		vault:    vault,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// オリジン検証はリバースプロキシ側で行う前提
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// ServeはGET /ws のハンドラ。
// ハンドシェイク時にaccess tokenを検証してから接続を登録する。
// tokenはAuthorizationヘッダかaccess_tokenクエリパラメータで渡す。
func (h *WsHandler) Serve(c echo.Context) error {
	tokenString := wsAccessToken(c)
	if tokenString == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	claims, err := h.vault.ValidateAccess(tokenString)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade失敗時はgorilla側が応答済み
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	client := realtime.NewClient(h.registry, conn, claims.UserID)
	if err := h.registry.OnConnect(client.ID(), claims.UserID, client); err != nil {
		_ = conn.Close()
		return nil
	}

	metrics.WebsocketConnections.Inc()
	client.Start()

	// クライアントは受け取った接続IDをjoin/leaveに載せて使う
	client.Send(realtime.Event{
		Event: "connected",
		Data:  map[string]string{"connection_id": client.ID()},
	})

	logging.Info().
		Str("conn_id", client.ID()).
		Str("user_id", claims.UserID).
		Msg("websocket connected")

	return nil
}

func wsAccessToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.QueryParam("access_token")
}
