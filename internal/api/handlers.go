// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/playergate/playergate/internal/auth"
	"github.com/playergate/playergate/pkg/errutil"
)

// maxBodyBytes caps request bodies. Auth payloads are tiny; anything
// larger is abuse or a mistake.
const maxBodyBytes = 64 << 10

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Nickname  string  `json:"nickname"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type meRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "playergate",
		"status":  "ok",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		s.metrics.RecordAuthRequest("register", "malformed")
		return
	}

	_, token, err := s.auth.Register(r.Context(), auth.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		Nickname:  req.Nickname,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.metrics.RecordAuthRequest("register", codeOf(err))
		writeServiceError(w, err)
		return
	}

	s.metrics.RecordAuthRequest("register", "ok")
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		s.metrics.RecordAuthRequest("login", "malformed")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.metrics.RecordAuthRequest("login", codeOf(err))
		writeServiceError(w, err)
		return
	}

	s.metrics.RecordAuthRequest("login", "ok")
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	var req meRequest
	if !decodeJSON(w, r, &req) {
		s.metrics.RecordAuthRequest("resolve", "malformed")
		return
	}

	profile, err := s.auth.ResolveProfile(r.Context(), req.Token)
	if err != nil {
		s.metrics.RecordAuthRequest("resolve", codeOf(err))
		writeServiceError(w, err)
		return
	}

	s.metrics.RecordAuthRequest("resolve", "ok")
	writeJSON(w, http.StatusOK, profile)
}

// decodeJSON reads a single JSON object into dst, answering 400 on
// malformed input. Returns false when the request was already answered.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "AUTH_MALFORMED_REQUEST", "request body is not valid JSON")
		return false
	}
	return true
}

// statusForCode maps stable service error codes to HTTP statuses.
// Unknown codes answer 500 so an unmapped failure can never leak a
// success status.
func statusForCode(code string) int {
	switch code {
	case auth.CodeDuplicateEmail:
		return http.StatusBadRequest
	case auth.CodeInvalidCredentials, auth.CodeInvalidToken:
		return http.StatusUnauthorized
	case auth.CodeUserNotFound:
		return http.StatusNotFound
	case auth.CodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case auth.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the client-facing message for a coded error.
// Messages are canned per code so wrapped internal detail (driver
// errors, hash shapes) never crosses the API. Validation failures are
// the exception: their messages describe the client's own input.
func publicMessage(code string, err error) string {
	switch code {
	case auth.CodeDuplicateEmail:
		return "email already registered"
	case auth.CodeInvalidCredentials:
		return "invalid email or password"
	case auth.CodeInvalidToken:
		return "invalid or expired token"
	case auth.CodeUserNotFound:
		return "user no longer exists"
	case auth.CodeStoreUnavailable:
		return "service temporarily unavailable, retry later"
	case auth.CodeInvalidArgument:
		if oopsErr, ok := oops.AsOops(err); ok {
			return oopsErr.Error()
		}
		return err.Error()
	default:
		return "internal error"
	}
}

func codeOf(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		// Code() is typed any; ours are always strings.
		if code, ok := oopsErr.Code().(string); ok && code != "" {
			return code
		}
	}
	return "internal"
}

func writeServiceError(w http.ResponseWriter, err error) {
	var code string
	if oopsErr, ok := oops.AsOops(err); ok {
		code, _ = oopsErr.Code().(string)
	}

	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		errutil.LogError(slog.Default(), "auth request failed", err)
	}
	if code == "" {
		code = "AUTH_INTERNAL"
	}

	writeError(w, status, code, publicMessage(code, err))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}
