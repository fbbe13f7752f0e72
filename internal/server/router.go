package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newraifootwear/notify-backend/internal/devices"
	"github.com/newraifootwear/notify-backend/internal/push"
	"go.uber.org/zap"
)

const (
	adminSubject        = "admin"
	adminSubjectContext = "notify_admin_subject"
)

var (
	errMissingRegistry         = errors.New("device registry dependency required")
	errMissingDispatcher       = errors.New("dispatcher dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingPasswordVerifier = errors.New("password verifier dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// DeviceRegistry is the device registry surface the HTTP layer depends on.
type DeviceRegistry interface {
	Register(ctx context.Context, request devices.RegisterRequest) (devices.Device, error)
	Lookup(ctx context.Context, email string) (devices.Device, error)
	List(ctx context.Context) ([]devices.Device, error)
	Update(ctx context.Context, id string, request devices.UpdateRequest) (devices.Device, error)
	Delete(ctx context.Context, id string) error
	Reconcile(ctx context.Context) (int64, error)
}

// Broadcaster fans one notification out to every registered device.
type Broadcaster interface {
	Dispatch(ctx context.Context, title, message string, data map[string]any) (push.Result, error)
}

// SessionTokenManager issues and validates admin session tokens.
type SessionTokenManager interface {
	IssueToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// PasswordVerifier checks operator login attempts.
type PasswordVerifier interface {
	Verify(candidate string) bool
}

// Dependencies wires the collaborators of the HTTP handler.
type Dependencies struct {
	Registry     DeviceRegistry
	Dispatcher   Broadcaster
	TokenManager SessionTokenManager
	Passwords    PasswordVerifier
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the notification API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Passwords == nil {
		return nil, errMissingPasswordVerifier
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		tokens:     deps.TokenManager,
		passwords:  deps.Passwords,
		logger:     logger,
	}

	router.POST("/auth/login", handler.handleLogin)
	router.POST("/api/devices/register", handler.handleRegisterDevice)
	router.GET("/api/devices/lookup", handler.handleLookupDevice)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/devices", handler.handleListDevices)
	protected.PATCH("/devices/:id", handler.handleUpdateDevice)
	protected.DELETE("/devices/:id", handler.handleDeleteDevice)
	protected.POST("/devices/reconcile", handler.handleReconcileDevices)
	protected.POST("/notifications/send", handler.handleSendNotification)

	return router, nil
}

type httpHandler struct {
	registry   DeviceRegistry
	dispatcher Broadcaster
	tokens     SessionTokenManager
	passwords  PasswordVerifier
	logger     *zap.Logger
}

type loginRequestPayload struct {
	Password string `json:"password"`
}

type loginResponsePayload struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Password is required"})
		return
	}

	if !h.passwords.Verify(request.Password) {
		h.logger.Warn("admin login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid password"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), adminSubject)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error issuing session token"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		Success:     true,
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type registerDevicePayload struct {
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Timestamp *time.Time `json:"timestamp"`
}

func (h *httpHandler) handleRegisterDevice(c *gin.Context) {
	var request registerDevicePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	device, err := h.registry.Register(c.Request.Context(), devices.RegisterRequest{
		Token:     request.Token,
		Email:     request.Email,
		Name:      request.Name,
		Phone:     request.Phone,
		Timestamp: request.Timestamp,
	})
	if err != nil {
		h.respondRegistryError(c, err, "Error registering device")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "device": device})
}

func (h *httpHandler) handleLookupDevice(c *gin.Context) {
	device, err := h.registry.Lookup(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.respondRegistryError(c, err, "Error fetching device")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device": device})
}

func (h *httpHandler) handleListDevices(c *gin.Context) {
	records, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.respondRegistryError(c, err, "Failed to fetch devices")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "devices": records})
}

type updateDevicePayload struct {
	Token *string `json:"token"`
	Email *string `json:"email"`
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

func (h *httpHandler) handleUpdateDevice(c *gin.Context) {
	var request updateDevicePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	device, err := h.registry.Update(c.Request.Context(), c.Param("id"), devices.UpdateRequest{
		Token: request.Token,
		Email: request.Email,
		Name:  request.Name,
		Phone: request.Phone,
	})
	if err != nil {
		h.respondRegistryError(c, err, "Update failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device": device})
}

func (h *httpHandler) handleDeleteDevice(c *gin.Context) {
	if err := h.registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondRegistryError(c, err, "Delete failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Device deleted"})
}

func (h *httpHandler) handleReconcileDevices(c *gin.Context) {
	deleted, err := h.registry.Reconcile(c.Request.Context())
	if err != nil {
		h.logger.Error("reconciliation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Duplicate devices reconciled",
		"deletedCount": deleted,
	})
}

type sendNotificationPayload struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (h *httpHandler) handleSendNotification(c *gin.Context) {
	var request sendNotificationPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), request.Title, request.Message, request.Data)
	if err != nil {
		h.respondDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func (h *httpHandler) respondRegistryError(c *gin.Context, err error, fallback string) {
	var conflict *devices.ConflictError
	switch {
	case errors.Is(err, devices.ErrTokenRequired), errors.Is(err, devices.ErrEmailRequired):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, devices.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": devices.ErrDeviceNotFound.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": conflict.Error()})
	default:
		h.logger.Error("registry operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": fallback})
	}
}

func (h *httpHandler) respondDispatchError(c *gin.Context, err error) {
	var gatewayErr *push.GatewayError
	switch {
	case errors.Is(err, push.ErrTitleAndMessageRequired):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": push.ErrTitleAndMessageRequired.Error()})
	case errors.As(err, &gatewayErr):
		h.logger.Error("push gateway rejected broadcast", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": gatewayErr.Message})
	default:
		h.logger.Error("broadcast failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error sending notifications"})
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return
	}
	c.Set(adminSubjectContext, subject)
	c.Next()
}
