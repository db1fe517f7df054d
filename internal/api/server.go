// Package api serves the chat opinion HTTP API.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/chatopinion/internal/booking"
	"github.com/zulandar/chatopinion/internal/complaint"
	"github.com/zulandar/chatopinion/internal/conversation"
	"gorm.io/gorm"
)

// Deps are the services behind the API.
type Deps struct {
	DB            *gorm.DB
	Conversations *conversation.Service
	Bookings      *booking.Service
	Complaints    *complaint.Service

	// AuthHeader carries the caller's user ID, set by the auth gateway.
	AuthHeader string
	// PublicURL prefixes pagination links.
	PublicURL string
	// MediaRoot is served under /media when set.
	MediaRoot string
}

// Server holds the API dependencies.
type Server struct {
	deps Deps
}

// New returns a Server. DB and the three services are required.
func New(deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if deps.Conversations == nil || deps.Bookings == nil || deps.Complaints == nil {
		return nil, fmt.Errorf("api: conversation, booking and complaint services are required")
	}
	if deps.AuthHeader == "" {
		deps.AuthHeader = DefaultAuthHeader
	}
	return &Server{deps: deps}, nil
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	s.registerRoutes(router)
	return router
}

// StartOpts holds listener settings.
type StartOpts struct {
	Port int
	Out  io.Writer
}

// Start serves the API. It blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Chat opinion API listening on :%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
