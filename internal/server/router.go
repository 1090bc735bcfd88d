package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yazok8/linktree-clone/internal/auth"
	"github.com/yazok8/linktree-clone/internal/links"
	"github.com/yazok8/linktree-clone/internal/public"
	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
)

const callerContextKey = "linktree_caller"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingTokenIssuer      = errors.New("token issuer dependency required")
	errMissingAccountService   = errors.New("account service dependency required")
	errMissingLinkService      = errors.New("link service dependency required")
	errMissingPublicService    = errors.New("public service dependency required")
)

// SessionValidator extracts and validates the caller's session token.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// TokenIssuer signs session tokens after a successful login.
type TokenIssuer interface {
	Issue(ctx context.Context, subject auth.Subject) (string, int64, error)
}

// AccountService manages the caller's account.
type AccountService interface {
	Register(ctx context.Context, input users.RegisterInput) (users.User, error)
	Authenticate(ctx context.Context, login, password string) (users.User, error)
	GetByID(ctx context.Context, userID string) (users.User, error)
	UpdateProfile(ctx context.Context, userID string, update users.ProfileUpdate) (users.User, error)
	Delete(ctx context.Context, userID string) error
}

// LinkService performs owner-scoped link operations.
type LinkService interface {
	List(ctx context.Context, owner links.OwnerID) ([]links.Link, error)
	CountActive(ctx context.Context, owner links.OwnerID) (int64, error)
	Create(ctx context.Context, owner links.OwnerID, input links.CreateInput) (links.Link, error)
	Get(ctx context.Context, owner links.OwnerID, linkID string) (links.Link, error)
	Update(ctx context.Context, owner links.OwnerID, linkID string, patch links.Patch) (links.Link, error)
	Replace(ctx context.Context, owner links.OwnerID, linkID string, patch links.Patch) (links.Link, error)
	Delete(ctx context.Context, owner links.OwnerID, linkID string) error
}

// PublicService serves anonymous profile reads.
type PublicService interface {
	Profile(ctx context.Context, username string) (public.ProfileView, error)
	Links(ctx context.Context, username string) ([]links.Link, error)
}

// CookieSettings controls the session cookie written on login.
type CookieSettings struct {
	Secure bool
}

// Dependencies wires the HTTP handler.
type Dependencies struct {
	Sessions       SessionValidator
	Tokens         TokenIssuer
	Accounts       AccountService
	Links          LinkService
	Public         PublicService
	Metrics        *Metrics
	Readiness      func(ctx context.Context) error
	AllowedOrigins []string
	Cookie         CookieSettings
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the JSON API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Links == nil {
		return nil, errMissingLinkService
	}
	if deps.Public == nil {
		return nil, errMissingPublicService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.middleware())
	}
	if len(deps.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(deps.AllowedOrigins))
	}

	handler := &httpHandler{
		sessions:  deps.Sessions,
		tokens:    deps.Tokens,
		accounts:  deps.Accounts,
		links:     deps.Links,
		public:    deps.Public,
		metrics:   deps.Metrics,
		readiness: deps.Readiness,
		cookie:    deps.Cookie,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.POST("/auth/registration", handler.handleRegister)
	api.POST("/auth/login", handler.handleLogin)
	api.POST("/auth/logout", handler.handleLogout)
	api.GET("/public/:username/links", handler.handlePublicLinks)
	api.GET("/profile/:username", handler.handlePublicProfile)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/links", handler.handleListLinks)
	protected.POST("/links", handler.handleCreateLink)
	protected.GET("/links/:id", handler.handleGetLink)
	protected.PUT("/links/:id", handler.handleReplaceLink)
	protected.PATCH("/links/:id", handler.handleUpdateLink)
	protected.DELETE("/links/:id", handler.handleDeleteLink)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PATCH("/profile", handler.handleUpdateProfile)
	protected.DELETE("/profile", handler.handleDeleteProfile)

	return router, nil
}

type httpHandler struct {
	sessions  SessionValidator
	tokens    TokenIssuer
	accounts  AccountService
	links     LinkService
	public    PublicService
	metrics   *Metrics
	readiness func(ctx context.Context) error
	cookie    CookieSettings
	logger    *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", routeLabel(c)),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// authorizeRequest validates the session and loads the caller. Tokens for
// deleted accounts are treated as anonymous.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingSessionToken):
		case errors.Is(err, auth.ErrExpiredSessionToken):
			h.logger.Info("session validation failed", zap.Error(err))
		default:
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		h.metrics.recordAuthFailure(authFailureReason(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	caller, err := h.accounts.GetByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		h.logger.Info("session refers to a missing account", zap.String("user_id", claims.UserID))
		h.metrics.recordAuthFailure("unknown_account")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		c.Abort()
		return
	}

	c.Set(callerContextKey, caller)
	c.Next()
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingSessionToken):
		return "missing_token"
	case errors.Is(err, auth.ErrExpiredSessionToken):
		return "expired_token"
	default:
		return "invalid_token"
	}
}

// callerFrom returns the account stored by authorizeRequest.
func callerFrom(c *gin.Context) (users.User, bool) {
	value, ok := c.Get(callerContextKey)
	if !ok {
		return users.User{}, false
	}
	caller, ok := value.(users.User)
	return caller, ok && caller.ID != ""
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.readiness != nil {
		if err := h.readiness(c.Request.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
