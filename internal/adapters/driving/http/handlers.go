package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/errutil"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// RegisterResponse is returned after a successful registration
// @Description Registered principal and an optional delivery warning
type RegisterResponse struct {
	*domain.PrincipalSummary
	Warning string `json:"warning,omitempty" example:"verification email could not be sent"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the user directory database and the cache backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	probes := map[string]Pinger{"database": s.db, "cache": s.cache}
	for name, p := range probes {
		if p == nil {
			continue
		}
		if err := p.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness probe failed", "probe", name, "error", err)
			writeError(w, http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Auth endpoints

// handleRegister godoc
// @Summary      Register
// @Description  Create an account and send a verification email
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RegisterRequest  true  "Email and password"
// @Success      201      {object}  RegisterResponse
// @Failure      400      {object}  ErrorResponse  "Invalid email or password"
// @Failure      409      {object}  ErrorResponse  "Email already registered"
// @Failure      503      {object}  ErrorResponse  "Directory unavailable"
// @Router       /auth/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		PrincipalSummary: result.Principal.ToSummary(),
		Warning:          result.Warning,
	})
}

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password. Accepts JSON or an OAuth2 password form (username, password).
// @Tags         Authentication
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.TokenPair
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Failure      403      {object}  ErrorResponse  "Account inactive"
// @Failure      429      {object}  ErrorResponse  "Too many failed attempts"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Email = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// handleRefresh godoc
// @Summary      Refresh token
// @Description  Exchange a refresh token, sent in the body or as a Bearer token, for a new pair
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RefreshRequest  false  "Refresh token"
// @Success      200      {object}  domain.TokenPair
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid refresh token"
// @Router       /auth/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = extractBearerToken(r)
	}

	pair, err := s.authService.Refresh(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// handleVerifyEmail godoc
// @Summary      Verify email
// @Description  Mark the token's account as verified. Repeating the call succeeds.
// @Tags         Authentication
// @Produce      json
// @Param        token  path      string  true  "Email verification token"
// @Success      200    {object}  domain.MessageResponse
// @Failure      400    {object}  ErrorResponse  "Invalid or expired token"
// @Router       /auth/verify-email/{token} [get]
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	resp, err := s.authService.VerifyEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRequestPasswordReset godoc
// @Summary      Request password reset
// @Description  Send reset instructions. The response never reveals whether the email is registered.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.PasswordResetRequest  true  "Email"
// @Success      200      {object}  domain.MessageResponse
// @Failure      503      {object}  ErrorResponse  "Directory unavailable"
// @Router       /auth/request-password-reset [post]
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.RequestPasswordReset(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResetPassword godoc
// @Summary      Reset password
// @Description  Set a new password using a password reset token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.PasswordResetConfirm  true  "Token and new password"
// @Success      200      {object}  domain.MessageResponse
// @Failure      400      {object}  ErrorResponse  "Invalid or expired token, or password too short"
// @Router       /auth/reset-password [post]
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.ConfirmPasswordReset(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Account endpoints

// handleMe godoc
// @Summary      Current principal
// @Description  Returns the authenticated account
// @Tags         Account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.PrincipalSummary
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/me [get]
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, s.accountService.Me(r.Context(), principal))
}

// handleUpdateAvatar godoc
// @Summary      Update avatar
// @Description  Upload an image (max 5MB). Requires a verified admin account.
// @Tags         Account
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Avatar image"
// @Success      200   {object}  domain.PrincipalSummary
// @Failure      400   {object}  ErrorResponse  "Not an image or too large"
// @Failure      403   {object}  ErrorResponse  "Admin with verified email required"
// @Failure      503   {object}  ErrorResponse  "Media storage unavailable"
// @Router       /auth/avatar [post]
func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Leave room for the multipart envelope around the file part
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxAvatarSize+1<<20)
	if err := r.ParseMultipartForm(domain.MaxAvatarSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer func() { _ = file.Close() }()

	summary, err := s.accountService.UpdateAvatar(r.Context(), principal, domain.AvatarUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Admin endpoints

// handleClearCache godoc
// @Summary      Clear cache
// @Description  Drop every cache entry. Refused unless enabled in configuration.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/cache [delete]
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.cacheAdmin.Clear(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}

// writeServiceError maps service errors to status codes. Bodies are fixed
// strings so internal details never leak to the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "account inactive")
	case errors.Is(err, domain.ErrNotVerified):
		writeError(w, http.StatusForbidden, "email not verified")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many failed attempts")
	case errors.Is(err, domain.ErrUnavailable):
		errutil.LogError(r.Context(), s.logger, "dependency unavailable", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		errutil.LogError(r.Context(), s.logger, "request failed", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || strings.HasPrefix(mediaType, "multipart/")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
