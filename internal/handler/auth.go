package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/localgov/asset-tracker-auth/internal/config"
	"github.com/localgov/asset-tracker-auth/internal/middleware"
	"github.com/localgov/asset-tracker-auth/internal/model"
	"github.com/localgov/asset-tracker-auth/internal/queue"
	"github.com/localgov/asset-tracker-auth/internal/repository"
	queue_publisher "github.com/localgov/asset-tracker-auth/internal/service"
	"github.com/localgov/asset-tracker-auth/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// tokenData is the wire shape of a freshly issued pair.
type tokenData struct {
	AccessToken        string    `json:"accessToken"`
	AccessTokenExpiry  time.Time `json:"accessTokenExpiry"`
	RefreshToken       string    `json:"refreshToken"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry"`
}

// loginData is tokenData plus the identity fields the mobile client stores.
type loginData struct {
	UserID   uint64 `json:"UserID"`
	Username string `json:"Username"`
	Email    string `json:"Email"`
	Role     string `json:"Role"`
	tokenData
}

// ----- response envelope -----

func success(c echo.Context, code int, data any) error {
	return c.JSON(code, echo.Map{"status": "success", "data": data})
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"status": "error", "message": msg})
}

// storeFail logs the underlying store error and returns the terse external
// response: 500 for schema or integrity problems, 503 for everything
// transient. The raw error never reaches the body.
func (h *AuthHandler) storeFail(c echo.Context, op string, err error) error {
	h.Log.Error(op+" failed", zap.Error(err))
	if errors.Is(err, repository.ErrSchema) || errors.Is(err, repository.ErrAmbiguousIdentifier) {
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	return fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
}

// issuePair mints and persists a brand-new token pair for the user,
// overwriting any prior pair. Login and refresh both funnel through here, so
// rotation and the single-active-session rule hold at every issuance site.
func (h *AuthHandler) issuePair(ctx context.Context, userID uint64) (model.TokenPair, error) {
	pair, err := utils.NewTokenPair(h.Cfg.AccessTTLMin, h.Cfg.RefreshTTLDays)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := h.Tokens.StorePair(ctx, userID, pair); err != nil {
		return model.TokenPair{}, err
	}
	return pair, nil
}

// publish fires an audit event without blocking the request; the broker
// being down must not affect auth.
func (h *AuthHandler) publish(eventType string, u model.User, ip string) {
	ev := queue.AuthEvent{
		Type:       eventType,
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		RemoteIP:   ip,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishAuthEvent(ctx, ev)
	}()
}

func asTokenData(pair model.TokenPair) tokenData {
	return tokenData{
		AccessToken:        pair.AccessToken,
		AccessTokenExpiry:  pair.AccessTokenExpiry,
		RefreshToken:       pair.RefreshToken,
		RefreshTokenExpiry: pair.RefreshTokenExpiry,
	}
}

// Login verifies credentials and returns a new token pair. Unknown user,
// wrong password and deactivated account all produce the identical 401 body;
// the differences exist only in the logs.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Identifier and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.Log.Debug("login rejected: unknown identifier",
				zap.String("remote_ip", c.RealIP()))
			return fail(c, http.StatusUnauthorized, "Invalid credentials")
		}
		return h.storeFail(c, "login lookup", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		h.Log.Debug("login rejected: password mismatch",
			zap.Uint64("user_id", u.ID))
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}
	if !u.IsActive {
		h.Log.Info("login rejected: account inactive",
			zap.Uint64("user_id", u.ID))
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	pair, err := h.issuePair(ctx, u.ID)
	if err != nil {
		return h.storeFail(c, "token issuance", err)
	}
	h.publish(queue.EventLogin, u, c.RealIP())

	return success(c, http.StatusOK, loginData{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		tokenData: asTokenData(pair),
	})
}

// Refresh exchanges a valid, unexpired refresh token for a brand-new pair.
// The new pair overwrites the old columns, so the token that was just used
// stops validating the moment this succeeds — replaying it fails.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "Refresh token is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Tokens.FindUserByRefreshToken(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			h.Log.Debug("refresh rejected: unknown or expired token",
				zap.String("remote_ip", c.RealIP()))
			return fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
		}
		return h.storeFail(c, "refresh lookup", err)
	}
	if !u.IsActive {
		h.Log.Info("refresh rejected: account inactive",
			zap.Uint64("user_id", u.ID))
		return fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
	}

	pair, err := h.issuePair(ctx, u.ID)
	if err != nil {
		return h.storeFail(c, "token rotation", err)
	}
	h.publish(queue.EventRefresh, u, c.RealIP())

	return success(c, http.StatusOK, asTokenData(pair))
}

// Logout nulls the caller's token pair, returning the account to the
// no-session state. Requires a valid access token.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tokens.Revoke(ctx, p.UserID); err != nil {
		return h.storeFail(c, "logout", err)
	}
	h.publish(queue.EventLogout, model.User{ID: p.UserID, Username: p.Username, Role: p.Role}, c.RealIP())

	return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Logged out"})
}

// Register creates a user and returns tokens immediately, matching the
// mobile onboarding flow. New credentials are always written under the
// modern hash scheme.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Username, email and password are required")
	}
	role := strings.TrimSpace(req.Role)
	switch role {
	case model.RoleAdmin, model.RoleAssetManager, model.RoleMaintenanceTeam:
	default:
		role = model.RoleAssetManager
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return fail(c, http.StatusConflict, "Username or email already exists")
		}
		return h.storeFail(c, "register", err)
	}

	pair, err := h.issuePair(ctx, uid)
	if err != nil {
		return h.storeFail(c, "token issuance", err)
	}
	u := model.User{ID: uid, Username: req.Username, Email: req.Email, Role: role}
	h.publish(queue.EventLogin, u, c.RealIP())

	return success(c, http.StatusCreated, loginData{
		UserID:    uid,
		Username:  req.Username,
		Email:     req.Email,
		Role:      role,
		tokenData: asTokenData(pair),
	})
}

// ChangePassword verifies the current password under whichever scheme stored
// it and writes the replacement as bcrypt. The live token pair is revoked so
// every device re-authenticates with the new credentials.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return fail(c, http.StatusBadRequest, "Current and new password are required")
	}
	if len(req.NewPassword) < 8 {
		return fail(c, http.StatusBadRequest, "New password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return h.storeFail(c, "change-password lookup", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		h.Log.Debug("change-password rejected: password mismatch",
			zap.Uint64("user_id", u.ID))
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if err := h.Users.UpdatePassword(ctx, u.ID, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return h.storeFail(c, "change-password update", err)
	}
	if err := h.Tokens.Revoke(ctx, u.ID); err != nil {
		h.Log.Warn("post-change revoke failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	h.publish(queue.EventPasswordChange, u, c.RealIP())

	return c.JSON(http.StatusOK, echo.Map{
		"status": "success", "message": "Password updated, please log in again",
	})
}

// Me returns the authenticated principal; protected collaborators use the
// same shape for their own authorization decisions.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	return success(c, http.StatusOK, echo.Map{
		"UserID":   p.UserID,
		"Username": p.Username,
		"Role":     p.Role,
	})
}
