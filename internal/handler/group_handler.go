package handler

import (
	"errors"
	"net/http"
	"strconv"

	"app/internal/realtime"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type GroupHandler struct {
	groupUC    *usecase.GroupUsecase
	membership *realtime.MembershipCoordinator
}

func NewGroupHandler(groupUC *usecase.GroupUsecase, membership *realtime.MembershipCoordinator) *GroupHandler {
	return &GroupHandler{groupUC: groupUC, membership: membership}
}

func (h *GroupHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	e.POST("/groups", h.Create, auth)
	e.GET("/groups", h.List, auth)
	e.GET("/groups/:id", h.Get, auth)

	// 参加・退出は接続IDを持ったクライアントがHTTPで叩く
	e.POST("/groups/join", h.Join, auth)
	e.POST("/groups/leave", h.Leave, auth)
}

// CreateはPOST /groups のハンドラ。
func (h *GroupHandler) Create(c echo.Context) error {
	var req usecase.GroupCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	group, err := h.groupUC.Create(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, group)
}

// GetはGET /groups/:id のハンドラ。
func (h *GroupHandler) Get(c echo.Context) error {
	group, err := h.groupUC.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, group)
}

// ListはGET /groups のハンドラ。
func (h *GroupHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	groups, err := h.groupUC.List(c.Request().Context(), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, groups)
}

type membershipRequest struct {
	GroupName    string `json:"group_name"`
	ConnectionID string `json:"connection_id"`
}

// JoinはPOST /groups/join のハンドラ。冪等（既参加ならjoined:false）。
func (h *GroupHandler) Join(c echo.Context) error {
	var req membershipRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}
	if req.GroupName == "" || req.ConnectionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	joined, err := h.membership.Join(c.Request().Context(), req.GroupName, req.ConnectionID)
	if err != nil {
		return writeMembershipError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"group_name": req.GroupName,
		"joined":     joined,
	})
}

// LeaveはPOST /groups/leave のハンドラ。冪等（非参加ならleft:false）。
func (h *GroupHandler) Leave(c echo.Context) error {
	var req membershipRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}
	if req.GroupName == "" || req.ConnectionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	left, err := h.membership.Leave(c.Request().Context(), req.GroupName, req.ConnectionID)
	if err != nil {
		return writeMembershipError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"group_name": req.GroupName,
		"left":       left,
	})
}

// join/leaveはrepositoryとregistryのエラーが素で上がってくる。
func writeMembershipError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrGroupNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND"})
	case errors.Is(err, realtime.ErrConnNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "CONNECTION_NOT_FOUND"})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
	}
}

func queryInt(c echo.Context, key string, def int) int {
	v := c.QueryParam(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
