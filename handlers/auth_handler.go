package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thermostatter/thermostatter-api/middleware"
	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/services"
	"github.com/thermostatter/thermostatter-api/utils"
	"go.uber.org/zap"
)

// maxRequestBodyBytes caps form and JSON request bodies
const maxRequestBodyBytes = 1 << 20

// AuthService defines the operations the auth handler depends on
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (*models.Token, error)
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Token, error)
}

// AuthHandler handles token issuance, registration and user info
type AuthHandler struct {
	service AuthService
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleToken handles POST /auth/token
// Accepts the OAuth2 password grant as a urlencoded or multipart form
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := r.ParseMultipartForm(maxRequestBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Debug("invalid token request form",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid form body", nil)
		return
	}

	req := models.LoginRequest{
		Username:  r.PostFormValue("username"),
		Password:  r.PostFormValue("password"),
		GrantType: r.PostFormValue("grant_type"),
	}
	if err := utils.ValidateStruct(&req); err != nil {
		h.rejectLoginForm(w, r, err)
		return
	}

	token, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeToken(w, token)
}

// rejectLoginForm answers an invalid token request. Missing credentials get
// the same 401 as wrong ones; only a bad grant_type is a 400.
func (h *AuthHandler) rejectLoginForm(w http.ResponseWriter, r *http.Request, err error) {
	fields := utils.GetValidationFields(err)
	_, badUsername := fields["username"]
	_, badPassword := fields["password"]
	if fields == nil || badUsername || badPassword {
		h.logger.Debug("incomplete token request",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}
	HandleValidationError(w, err, h.logger)
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		h.logger.Debug("invalid register request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	token, err := h.service.Register(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeToken(w, token)
}

// HandleUserInfo handles GET /auth/userinfo
// The user is resolved by the auth middleware
func (h *AuthHandler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		_ = utils.WriteUnauthorized(w, services.MsgInvalidCredentials)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, user); err != nil {
		h.logger.Error("failed to write user info response", zap.Error(err))
	}
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, token *models.Token) {
	w.Header().Set("Cache-Control", "no-store")
	if err := utils.WriteJSON(w, http.StatusOK, token); err != nil {
		h.logger.Error("failed to write token response", zap.Error(err))
	}
}

// HandleHelloWorld handles GET /hello-world
func HandleHelloWorld(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, "Hello, World!")
}
