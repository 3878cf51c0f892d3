package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/auth"
	"github.com/ninewheels/server/internal/logger"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/internal/users"
	"github.com/ninewheels/server/pkg/responders"
)

type handlers struct {
	Deps
}

// respondError maps engine and storage failures onto the wire taxonomy.
func (h handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		apperr.WriteJSON(w, appErr)
		return
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		apperr.Write(w, apperr.CodeNotFound, "resource not found")
	case errors.Is(err, storage.ErrConflict):
		apperr.Write(w, apperr.CodeConflict, "state conflict")
	case errors.Is(err, storage.ErrInsufficientFunds):
		apperr.Write(w, apperr.CodeInsufficientFunds, "insufficient wallet balance")
	case errors.Is(err, context.DeadlineExceeded):
		apperr.Write(w, apperr.CodeTimeout, "request deadline exceeded")
	default:
		reqLog := logger.FromContext(r.Context())
		reqLog.Error().Err(err).Msg("request failed")
		apperr.Write(w, apperr.CodeInternal, "internal error")
	}
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.New(apperr.CodeInvalidInput, "malformed JSON body")
	}
	return nil
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (h handlers) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		reqLog := logger.FromContext(r.Context())
		reqLog.Error().Err(err).Msg("health check storage ping failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	responders.JSON(w, code, map[string]string{"status": status})
}

func (h handlers) registerUser(w http.ResponseWriter, r *http.Request) {
	var reg users.Registration
	if err := decode(r, &reg); err != nil {
		h.respondError(w, r, err)
		return
	}
	user, err := h.Users.Register(r.Context(), reg)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusCreated, user)
}

func (h handlers) currentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Get(r.Context(), identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, user)
}
