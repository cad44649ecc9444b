package handler

import (
	"net/http"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PostHandler struct {
	postUC *usecase.PostUsecase
	likeUC *usecase.LikeUsecase
}

func NewPostHandler(postUC *usecase.PostUsecase, likeUC *usecase.LikeUsecase) *PostHandler {
	return &PostHandler{postUC: postUC, likeUC: likeUC}
}

func (h *PostHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	e.POST("/posts", h.Create, auth)
	e.GET("/posts/:id", h.Get, auth)
	e.GET("/groups/:id/posts", h.ListByGroup, auth)

	e.POST("/posts/:id/like", h.ToggleLike, auth)
	e.GET("/posts/:id/like", h.IsLiked, auth)
}

// CreateはPOST /posts のハンドラ。
func (h *PostHandler) Create(c echo.Context) error {
	var req usecase.PostCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	post, err := h.postUC.Create(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, post)
}

// GetはGET /posts/:id のハンドラ。
func (h *PostHandler) Get(c echo.Context) error {
	post, err := h.postUC.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// ListByGroupはGET /groups/:id/posts のハンドラ。
func (h *PostHandler) ListByGroup(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	posts, err := h.postUC.ListByGroup(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, posts)
}

// ToggleLikeはPOST /posts/:id/like のハンドラ。
// いいね済みなら解除、未いいねなら付与。グループへLikeイベントを配信する。
func (h *PostHandler) ToggleLike(c echo.Context) error {
	result, err := h.likeUC.Toggle(c.Request().Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// IsLikedはGET /posts/:id/like のハンドラ。
func (h *PostHandler) IsLiked(c echo.Context) error {
	liked, err := h.likeUC.IsLiked(c.Request().Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"liked": liked})
}
