// Package httpapi is the REST surface over the manager and reporter.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"streamhub/internal/manager"
	"streamhub/internal/reporter"
)

type Server struct {
	mgr *manager.Manager
	rep *reporter.Reporter

	router *gin.Engine
	srv    *http.Server
}

func New(mgr *manager.Manager, rep *reporter.Reporter) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		mgr:    mgr,
		rep:    rep,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.router.Group("/v1")

	consumers := v1.Group("/consumers")
	consumers.POST("", s.createConsumer)
	consumers.GET("", s.listConsumers)
	consumers.GET("/:id", s.getConsumer)
	consumers.PUT("/:id", s.updateConsumer)
	consumers.DELETE("/:id", s.deleteConsumer)
	consumers.POST("/:id/start", s.startConsumer)
	consumers.POST("/:id/stop", s.stopConsumer)

	groups := v1.Group("/consumer-groups")
	groups.GET("", s.listGroups)
	groups.GET("/:group/offsets", s.groupOffsets)

	v1.GET("/monitor/consumer-group-lag", s.groupLag)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) Serve(port int) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
