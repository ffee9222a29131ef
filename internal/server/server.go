package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/session"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"github.com/smallbiznis/taskboard/internal/config"
	invitationdomain "github.com/smallbiznis/taskboard/internal/invitation/domain"
	"github.com/smallbiznis/taskboard/internal/notification/realtime"
	"github.com/smallbiznis/taskboard/internal/observability"
	obsmiddleware "github.com/smallbiznis/taskboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	obstracing "github.com/smallbiznis/taskboard/internal/observability/tracing"
	"github.com/smallbiznis/taskboard/internal/ratelimit"
	"github.com/smallbiznis/taskboard/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// corsConfig allows credentialed requests from the configured web origins so
// the token cookies travel with them.
func corsConfig(cfg config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", obsmiddleware.RequestIDHeader)
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowOrigins = []string{cfg.WebsiteDomain}
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	return corsCfg
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	authsvc       authdomain.Service
	sessions      *session.Manager
	boardSvc      boarddomain.Service
	invitationSvc invitationdomain.Service
	reconciler    *reconcile.Reconciler
	invitations   *realtime.Hub
	authLimiter   *ratelimit.AuthLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Authsvc       authdomain.Service
	Sessions      *session.Manager
	BoardSvc      boarddomain.Service
	InvitationSvc invitationdomain.Service
	Reconciler    *reconcile.Reconciler
	Invitations   *realtime.Hub          `optional:"true"`
	AuthLimiter   *ratelimit.AuthLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		authsvc:       p.Authsvc,
		sessions:      p.Sessions,
		boardSvc:      p.BoardSvc,
		invitationSvc: p.InvitationSvc,
		reconciler:    p.Reconciler,
		invitations:   p.Invitations,
		authLimiter:   p.AuthLimiter,
	}

	svc.registerUserRoutes()
	svc.registerBoardRoutes()
	svc.registerInvitationRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerUserRoutes() {
	users := s.engine.Group("/v1/users")

	users.POST("/register", s.AuthRateLimit("register"), s.Register)
	users.POST("/verify", s.AuthRateLimit("verify"), s.VerifyAccount)
	users.POST("/login", s.AuthRateLimit("login"), s.Login)
	users.DELETE("/logout", s.Logout)
	users.GET("/refresh_token", s.RefreshToken)
	users.GET("/me", s.AuthRequired(), s.GetMe)
	users.PUT("/me", s.AuthRequired(), s.UpdateMe)
}

func (s *Server) registerBoardRoutes() {
	v1 := s.engine.Group("/v1", s.AuthRequired())

	// -------- Boards --------
	v1.GET("/boards", s.ListBoards)
	v1.POST("/boards", s.CreateBoard)
	v1.GET("/boards/:id", s.GetBoard)
	v1.PUT("/boards/:id", s.UpdateBoard)
	v1.PUT("/boards/supports/moving_card", s.MoveCard)
	v1.POST("/boards/:id/reconcile", s.ReconcileBoard)

	// -------- Columns --------
	v1.POST("/columns", s.CreateColumn)
	v1.PUT("/columns/:id", s.UpdateColumn)
	v1.DELETE("/columns/:id", s.DeleteColumn)

	// -------- Cards --------
	v1.POST("/cards", s.CreateCard)
	v1.PUT("/cards/:id", s.UpdateCard)
}

func (s *Server) registerInvitationRoutes() {
	invitations := s.engine.Group("/v1/invitations", s.AuthRequired())

	invitations.GET("", s.ListInvitations)
	invitations.GET("/stream", s.StreamInvitations)
	invitations.POST("/board", s.CreateBoardInvitation)
	invitations.PUT("/board/:invitationId", s.RespondToInvitation)
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}
