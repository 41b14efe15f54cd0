// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

// Package httpapi exposes the identity services as a JSON HTTP API under
// /api/auth.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, in identity.RegisterInput) (*identity.Identity, error)
}

// Authenticator manages sessions and the data behind them.
type Authenticator interface {
	Login(ctx context.Context, in identity.LoginInput) (*identity.LoginResult, error)
	Logout(ctx context.Context, handle string) error
	CurrentIdentity(ctx context.Context, handle string) (*identity.Identity, identity.Profile, error)
	ChangeSecret(ctx context.Context, handle, oldSecret, newSecret string) error
	UpdateStudentProfile(ctx context.Context, handle string, in identity.StudentProfileInput) (*identity.StudentProfile, error)
	UpdateRecruiterProfile(ctx context.Context, handle string, in identity.RecruiterProfileInput) (*identity.RecruiterProfile, error)
}

// Tokens issues and redeems reset and verification tokens.
type Tokens interface {
	IssueResetToken(ctx context.Context, email string) (string, error)
	ValidateResetToken(ctx context.Context, value string) (ulid.ULID, error)
	RedeemResetToken(ctx context.Context, value, newSecret string) error
	IssueVerificationToken(ctx context.Context, identityID ulid.ULID) (string, error)
	RedeemVerificationToken(ctx context.Context, value string) error
}

// RequestObserver is told about every finished request.
type RequestObserver func(route, method string, status int, elapsed time.Duration)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the auth API.
type Handler struct {
	reg     Registrar
	auth    Authenticator
	tokens  Tokens
	cfg     Config
	logger  *slog.Logger
	observe RequestObserver
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRequestObserver installs a per-request callback, typically a metrics recorder.
func WithRequestObserver(fn RequestObserver) Option {
	return func(h *Handler) { h.observe = fn }
}

// NewHandler creates a Handler.
func NewHandler(reg Registrar, auth Authenticator, tokens Tokens, cfg Config, opts ...Option) (*Handler, error) {
	if reg == nil {
		return nil, oops.Errorf("registrar is required")
	}
	if auth == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}
	h := &Handler{
		reg:    reg,
		auth:   auth,
		tokens: tokens,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes returns the router with all middleware installed.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register/student", h.registerStudent)
		r.Post("/register/recruiter", h.registerRecruiter)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Get("/profile", h.profile)
		r.Get("/check-auth", h.checkAuth)
		r.Put("/profile/student", h.updateStudentProfile)
		r.Put("/profile/recruiter", h.updateRecruiterProfile)
		r.Post("/password/change", h.changePassword)
		r.Post("/password/reset/request", h.requestReset)
		r.Post("/password/reset/validate", h.validateReset)
		r.Post("/password/reset/confirm", h.confirmReset)
		r.Post("/email/verify/request", h.requestVerification)
		r.Post("/email/verify/confirm", h.confirmVerification)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		h.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
		if h.observe != nil {
			h.observe(route, r.Method, ww.Status(), elapsed)
		}
	})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched;
// a field dst does not know is rejected.
func decode(r *http.Request, w http.ResponseWriter, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	fields := map[string]string{"body": "request body must be a JSON object"}
	// encoding/json reports unknown fields only through the message text.
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		fields = map[string]string{strings.Trim(name, `"`): "unknown field"}
	}
	return oops.Code(identity.CodeValidation).With("fields", fields).Wrap(err)
}

func origin(r *http.Request) identity.Origin {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return identity.Origin{IPAddress: ip, UserAgent: r.UserAgent()}
}

func (h *Handler) registerStudent(w http.ResponseWriter, r *http.Request) {
	var req registerStudentRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireConfirmation("password_confirm", req.Password, req.PasswordConfirm); err != nil {
		h.writeError(w, r, err)
		return
	}
	fields := identity.FieldErrors{}
	student := req.studentFields.input(fields)
	if err := fields.Err(); err != nil {
		h.writeError(w, r, err)
		return
	}

	ident, err := h.reg.Register(r.Context(), identity.RegisterInput{
		Role:               identity.RoleStudent,
		Email:              req.Email,
		Secret:             req.Password,
		SecretConfirmation: req.PasswordConfirm,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Student:            student,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, identityResponse{Message: "Student registered successfully", User: viewOf(ident)})
}

func (h *Handler) registerRecruiter(w http.ResponseWriter, r *http.Request) {
	var req registerRecruiterRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireConfirmation("password_confirm", req.Password, req.PasswordConfirm); err != nil {
		h.writeError(w, r, err)
		return
	}

	ident, err := h.reg.Register(r.Context(), identity.RegisterInput{
		Role:               identity.RoleRecruiter,
		Email:              req.Email,
		Secret:             req.Password,
		SecretConfirmation: req.PasswordConfirm,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Recruiter:          &req.RecruiterProfileInput,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, identityResponse{Message: "Recruiter registered successfully", User: viewOf(ident)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	role, err := identity.ParseRole(req.UserType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), identity.LoginInput{
		Email:        req.Email,
		Secret:       req.Password,
		ExpectedRole: role,
		Origin:       origin(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, res.Handle)
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		User:    viewOf(res.Identity),
		Profile: profileOrNil(res.Profile),
		Session: sessionView{ID: res.Session.ID.String(), Handle: res.Handle, CreatedAt: res.Session.CreatedAt},
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	err := h.auth.Logout(r.Context(), h.sessionHandle(r))
	h.clearSessionCookie(w)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logout successful"})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	ident, p, err := h.auth.CurrentIdentity(r.Context(), h.sessionHandle(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{User: viewOf(ident), Profile: profileOrNil(p)})
}

func (h *Handler) checkAuth(w http.ResponseWriter, r *http.Request) {
	ident, p, err := h.auth.CurrentIdentity(r.Context(), h.sessionHandle(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	authenticated := true
	writeJSON(w, http.StatusOK, profileResponse{
		Authenticated: &authenticated,
		User:          viewOf(ident),
		Profile:       profileOrNil(p),
	})
}

func (h *Handler) updateStudentProfile(w http.ResponseWriter, r *http.Request) {
	var req studentFields
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	fields := identity.FieldErrors{}
	in := req.input(fields)
	if err := fields.Err(); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.auth.UpdateStudentProfile(r.Context(), h.sessionHandle(r), *in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileUpdateResponse{Message: "Profile updated successfully", Profile: p})
}

func (h *Handler) updateRecruiterProfile(w http.ResponseWriter, r *http.Request) {
	var req identity.RecruiterProfileInput
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.auth.UpdateRecruiterProfile(r.Context(), h.sessionHandle(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileUpdateResponse{Message: "Profile updated successfully", Profile: p})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireConfirmation("new_password_confirm", req.NewPassword, req.NewPasswordConfirm); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.auth.ChangeSecret(r.Context(), h.sessionHandle(r), req.OldPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

// requestReset always answers with the same message so the response does
// not reveal whether the email is registered.
func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.tokens.IssueResetToken(r.Context(), req.Email)
	if err != nil && !identity.IsDomainError(err) {
		h.writeError(w, r, err)
		return
	}
	resp := messageResponse{Message: "If an account with this email exists, a reset link will be sent"}
	if h.cfg.ExposeTokens {
		resp.Token = token
	}
	writeJSON(w, http.StatusOK, resp)
}

// validateReset lets the reset form check a token before asking for the new
// password. Nothing is consumed.
func (h *Handler) validateReset(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.tokens.ValidateResetToken(r.Context(), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Token is valid"})
}

func (h *Handler) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireConfirmation("new_password_confirm", req.NewPassword, req.NewPasswordConfirm); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.tokens.RedeemResetToken(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful"})
}

func (h *Handler) requestVerification(w http.ResponseWriter, r *http.Request) {
	ident, _, err := h.auth.CurrentIdentity(r.Context(), h.sessionHandle(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.tokens.IssueVerificationToken(r.Context(), ident.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := messageResponse{Message: "Verification email sent"}
	if h.cfg.ExposeTokens {
		resp.Token = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) confirmVerification(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, w, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.tokens.RedeemVerificationToken(r.Context(), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified"})
}

// requireConfirmation checks that the confirmation named field was sent and
// repeats secret.
func requireConfirmation(field, secret, confirmation string) error {
	if confirmation == "" {
		return oops.Code(identity.CodeMissingRequiredField).
			With("fields", map[string]string{field: "password confirmation is required"}).
			Errorf("%s is required", field)
	}
	if secret != confirmation {
		return oops.Code(identity.CodeValidation).
			With("fields", map[string]string{field: "passwords do not match"}).
			Errorf("password confirmation mismatch")
	}
	return nil
}
