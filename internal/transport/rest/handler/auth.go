package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"provsurvey/internal/model"
	"provsurvey/internal/service"
	"provsurvey/internal/transport/rest/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError answers an unexpected service failure. Storage details
// stay in the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("requestId", middleware.GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
	}
	var se *model.StorageError
	if errors.As(err, &se) {
		log.Error("storage failure", append(fields, zap.String("op", se.Op))...)
	} else {
		log.Error("request failed", fields...)
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
