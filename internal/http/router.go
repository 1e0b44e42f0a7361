package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"log/slog"

	"github.com/rs/cors"

	"github.com/mashpotato9/placefinder/internal/service/auth"
	"github.com/mashpotato9/placefinder/internal/service/place"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	handler  http.Handler
	logger   *slog.Logger
	auth     auth.Service
	places   place.Service
	metrics  *httpMetrics
	dbHealth func(context.Context) error
}

const (
	healthCheckTimeout = 2 * time.Second
	deletePlacePrefix  = "/places/delete/"
)

// NewRouter assembles routes with dependencies. allowedOrigins configures the
// CORS allowlist for browser clients.
func NewRouter(logger *slog.Logger, authSvc auth.Service, placeSvc place.Service, allowedOrigins []string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		places:   placeSvc,
		metrics:  newHTTPMetrics(),
		dbHealth: dbHealth,
	}
	r.register()
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	r.handler = c.Handler(r.mux)
	return r
}

// ServeHTTP delegates to the middleware chain around the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", r.metrics.handler())
	r.mux.HandleFunc("/auth/register", r.audit("/auth/register", r.handleRegister))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.handleLogin))
	r.mux.HandleFunc("/auth/user", r.audit("/auth/user", r.requireAuth(r.handleCurrentUser)))
	r.mux.HandleFunc("/places/save", r.audit("/places/save", r.requireAuth(r.handleSavePlace)))
	r.mux.HandleFunc("/places/saved", r.audit("/places/saved", r.requireAuth(r.handleSavedPlaces)))
	r.mux.HandleFunc(deletePlacePrefix, r.audit("/places/delete/:id", r.requireAuth(r.handleDeletePlace)))
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentials
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	_, err := r.auth.Register(req.Context(), payload.Username, payload.Password)
	switch {
	case err == nil:
		writeText(w, http.StatusCreated, "User registered successfully")
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, "Password must be at most 72 bytes")
	case errors.Is(err, auth.ErrValidation):
		writeError(w, http.StatusBadRequest, "Username and password are required")
	case errors.Is(err, auth.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "Username already exists")
	default:
		r.logger.Error("register failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error registering user")
	}
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentials
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	token, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
	default:
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error logging in")
	}
}

func (r *Router) handleCurrentUser(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for user lookup", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	user, err := r.auth.CurrentUser(req.Context(), identity)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"id":       user.ID,
			"username": user.Username,
		})
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		r.logger.Error("user lookup failed", "error", err, "user_id", identity.UserID)
		writeError(w, http.StatusInternalServerError, "Error retrieving user information")
	}
}

func (r *Router) handleSavePlace(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload place.SaveInput
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for place save", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if _, err := r.places.Save(req.Context(), identity, payload); err != nil {
		r.logger.Error("save place failed", "error", err, "user_id", identity.UserID)
		writeError(w, http.StatusInternalServerError, "Error saving place")
		return
	}
	writeText(w, http.StatusCreated, "Place saved successfully")
}

func (r *Router) handleSavedPlaces(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for place listing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	places, err := r.places.List(req.Context(), identity)
	if err != nil {
		r.logger.Error("list places failed", "error", err, "user_id", identity.UserID)
		writeError(w, http.StatusInternalServerError, "Error retrieving saved places")
		return
	}
	writeJSON(w, http.StatusOK, places)
}

func (r *Router) handleDeletePlace(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	placeID := strings.TrimPrefix(req.URL.Path, deletePlacePrefix)
	if placeID == "" || strings.Contains(placeID, "/") {
		r.notFound(w)
		return
	}
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for place delete", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	err := r.places.Delete(req.Context(), identity, placeID)
	switch {
	case err == nil:
		writeText(w, http.StatusOK, "Place deleted successfully")
	case errors.Is(err, place.ErrNotFound):
		writeError(w, http.StatusNotFound, "Place not found")
	default:
		r.logger.Error("delete place failed", "error", err, "user_id", identity.UserID, "place_id", placeID)
		writeError(w, http.StatusInternalServerError, "Error deleting place")
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// audit records metrics and an http_request log line for every request. A
// handler panic is turned into a 500 and still recorded.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				r.logger.Error("handler panic", "panic", rec, "path", req.URL.Path, "stack", string(debug.Stack()))
				if recorder.status == 0 {
					writeError(recorder, http.StatusInternalServerError, "Internal server error")
				}
			}
			r.record(route, recorder, req, time.Since(start))
		}()
		next(recorder, req)
	}
}

func (r *Router) record(route string, recorder *statusRecorder, req *http.Request, duration time.Duration) {
	status := recorder.status
	if status == 0 {
		status = http.StatusOK
	}
	ctx := recorder.ctx
	if ctx == nil {
		ctx = req.Context()
	}
	r.metrics.observe(req.Method, route, status, duration)

	actor := "anonymous"
	fields := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"bytes", recorder.bytes,
		"duration_ms", duration.Milliseconds(),
	}
	if ip := clientIP(req); ip != "" {
		fields = append(fields, "ip", ip)
	}
	if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
		fields = append(fields, "request_id", reqID)
	}
	if identity, ok := identityFromContext(ctx); ok {
		actor = "user"
		fields = append(fields, "user_id", identity.UserID)
	}
	fields = append(fields, "actor", actor)

	switch {
	case status >= http.StatusInternalServerError:
		r.logger.Error("http_request", fields...)
	case status >= http.StatusBadRequest:
		r.logger.Warn("http_request", fields...)
	default:
		r.logger.Info("http_request", fields...)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not found")
}
