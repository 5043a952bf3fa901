// Package server wires the REST surface and the realtime endpoint into one
// HTTP listener: gin routes for share and session management, a
// middleware-chained websocket upgrade for the gateway.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TimyBen/cloud-file-management-system/internal/gateway"
	"github.com/TimyBen/cloud-file-management-system/internal/metrics"
	"github.com/TimyBen/cloud-file-management-system/internal/server/middleware"
	"github.com/TimyBen/cloud-file-management-system/internal/session"
	"github.com/TimyBen/cloud-file-management-system/internal/share"
	"github.com/TimyBen/cloud-file-management-system/pkg/config"
	"github.com/TimyBen/cloud-file-management-system/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    *share.Registry
	coordinator *session.Coordinator
	gateway     *gateway.Gateway
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, registry *share.Registry, coordinator *session.Coordinator, gw *gateway.Gateway) *App {
	app := &App{
		logger:      logger,
		registry:    registry,
		coordinator: coordinator,
		gateway:     gw,
		config:      cfg,
		ctx:         rootCtx,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.Use(app.requireAuth())
	{
		api.POST("/shares", app.createShare)
		api.PATCH("/shares/:id", app.updateShare)
		api.DELETE("/shares/:id", app.revokeShare)
		api.GET("/files/:fileId/shares", app.listShares)

		api.POST("/sessions", app.startSession)
		api.POST("/sessions/:id/join", app.joinSession)
		api.POST("/sessions/:id/leave", app.leaveSession)
		api.PATCH("/sessions/:id/end", app.endSession)
		api.GET("/sessions/:id/participants", app.listParticipants)
	}

	// The websocket path keeps its own chain: metadata, request log, auth,
	// then the per-user connection limiter, which needs the authenticated
	// identity.
	roster := gw.Roster()
	connCycler := func(userID string) {
		if oldest, found := roster.OldestForUser(userID); found {
			logger.Info("Cycling connection: closing oldest",
				slog.String("userID", userID),
				slog.String("connID", oldest.ID.String()),
			)
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}
	wsChain := middleware.Chain(http.HandlerFunc(app.upgradeHandler),
		middleware.RequestMetadataMiddleware(),
		middleware.NewRequestLogger(logger),
		middleware.NewAuthMiddleware(logger, cfg.Server.Auth.JWTSecret),
		middleware.NewConnectionLimiter(
			logger,
			roster.CountForUser,
			connCycler,
			cfg.Server.ConnectionLimit,
		),
	)
	router.GET("/ws", gin.WrapH(wsChain))

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok || reqMeta.Actor.ID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.Actor.ID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)
	if _, err := a.gateway.Register(conn, reqMeta.Actor); err != nil {
		connLogger.Error("Failed to register connection with gateway", slog.Any("error", err))
		conn.Close(err)
		return
	}
	conn.SetOnMessageHandler(a.gateway.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, cause error) {
		a.gateway.HandleDisconnect(id, cause)
	})

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, client := range a.gateway.Roster().AllClients() {
		client.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
