package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/pkg/chat"
	"github.com/xhad/saccoassist/pkg/ingest"
	"github.com/xhad/saccoassist/pkg/scraper"
	"github.com/xhad/saccoassist/pkg/summary"
)

// Documents is the upload side of the API.
type Documents interface {
	Upload(ctx context.Context, up ingest.Upload) (*ingest.UploadResult, error)
	List(ctx context.Context) ([]models.UploadedDocument, error)
	Get(ctx context.Context, id string) (*models.UploadedDocument, error)
	Delete(ctx context.Context, id string) error
}

// Chatter answers questions and serves conversation history.
type Chatter interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Response, error)
	Conversation(ctx context.Context, id string) (*models.Conversation, []models.Message, error)
	Conversations(ctx context.Context) ([]models.Conversation, error)
}

type Website interface {
	Refresh(ctx context.Context, url string) scraper.RefreshResult
	Status() scraper.Status
}

type Summaries interface {
	BuildContext(ctx context.Context, files []summary.File) (string, error)
}

type Config struct {
	MaxUploadBytes int64    // default 10 MiB
	AllowOrigins   []string // default ["*"]
	WebsiteURL     string
}

// Deps are the services behind the routes. Website and Summaries are
// optional; their routes answer 503 when unset.
type Deps struct {
	Documents Documents
	Chat      Chatter
	Website   Website
	Summaries Summaries
}

type Server struct {
	config Config
	deps   Deps
	engine *gin.Engine
	logger *zap.Logger
}

func New(deps Deps, config Config, logger *zap.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{config: config, deps: deps, logger: logger}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(cors(s.config.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/upload", s.upload)
		api.GET("/files", s.listFiles)
		api.DELETE("/files/:id", s.deleteFile)
		api.POST("/summaries", s.summaries)

		api.POST("/chat", s.chat)
		api.GET("/conversations", s.conversations)
		api.GET("/conversations/:id", s.conversation)

		api.POST("/website/refresh", s.refreshWebsite)
		api.GET("/website/status", s.websiteStatus)
	}

	return r
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
