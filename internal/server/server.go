package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app/internal/handler"
	"app/internal/logging"
	appmw "app/internal/middleware"
	"app/internal/token"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Group  *handler.GroupHandler
	Post   *handler.PostHandler
	Ws     *handler.WsHandler
	Health *handler.HealthHandler
}

type Server struct {
	echo *echo.Echo
	addr string
}

// Newはルーティングとミドルウェアを組み立てたサーバーを返す。
func New(addr string, feURL string, vault *token.Vault, promReg *prometheus.Registry, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(appmw.HTTPMetrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{feURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	auth := appmw.AuthJWT(vault)
	admin := appmw.AdminRoleGuard()
	// ブルートフォース対策。認証系エンドポイントのみ
	limit := appmw.RateLimit(5, 10)

	h.Auth.RegisterRoutes(e, auth, admin, limit)
	h.Group.RegisterRoutes(e, auth)
	h.Post.RegisterRoutes(e, auth)
	h.Ws.RegisterRoutes(e)
	h.Health.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	return &Server{echo: e, addr: addr}
}

// Startはサーバーを起動し、SIGINT/SIGTERMでgraceful shutdownする。
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logging.Info().Str("addr", s.addr).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
