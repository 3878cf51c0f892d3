package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/pkg/responders"
)

func (h handlers) listPayouts(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	filter := storage.PayoutFilter{}

	if id.Role == storage.RoleAdmin {
		filter.RiderID = r.URL.Query().Get("riderId")
		filter.Status = storage.PayoutStatus(r.URL.Query().Get("status"))
		if raw := r.URL.Query().Get("weekStart"); raw != "" {
			ws, err := parseWeekStart(raw)
			if err != nil {
				h.respondError(w, r, err)
				return
			}
			filter.WeekStart = &ws
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				h.respondError(w, r, apperr.Newf(apperr.CodeInvalidInput, "invalid limit %q", raw))
				return
			}
			filter.Limit = limit
		}
	} else {
		// Riders only ever see their own payouts.
		filter.RiderID = id.UserID
	}

	views, err := h.Payouts.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, views)
}

func (h handlers) getPayout(w http.ResponseWriter, r *http.Request) {
	view, err := h.Payouts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id := identity(r)
	if id.Role != storage.RoleAdmin && view.RiderID != id.UserID {
		h.respondError(w, r, apperr.New(apperr.CodeForbidden, "not your payout"))
		return
	}
	responders.JSON(w, http.StatusOK, view)
}

// markPayoutPaid settles a payout. Riders settle their own with an
// optional proof image; admins settle any. Multipart form:
// paymentProof (image file, optional), paystackReference (optional).
func (h handlers) markPayoutPaid(w http.ResponseWriter, r *http.Request) {
	payoutID := chi.URLParam(r, "id")
	id := identity(r)

	view, err := h.Payouts.Get(r.Context(), payoutID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	paidBy := storage.PaidByAdmin
	if id.Role == storage.RoleRider {
		if view.RiderID != id.UserID {
			h.respondError(w, r, apperr.New(apperr.CodeForbidden, "not your payout"))
			return
		}
		paidBy = storage.PaidByRider
	}

	if err := r.ParseMultipartForm(h.Config.Uploads.MaxSizeBytes); err != nil {
		h.respondError(w, r, apperr.New(apperr.CodeInvalidInput, "expected multipart form data"))
		return
	}

	proofURL := ""
	if file, header, ferr := r.FormFile("paymentProof"); ferr == nil {
		defer file.Close()
		if h.Proofs == nil {
			h.respondError(w, r, apperr.New(apperr.CodeInvalidInput, "payment proof uploads are disabled"))
			return
		}
		proofURL, err = h.Proofs.SaveProof(payoutID, header.Header.Get("Content-Type"), file)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	paystackRef := r.FormValue("paystackReference")

	paid, err := h.Payouts.MarkPaid(r.Context(), payoutID, paidBy, proofURL, paystackRef)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, paid)
}

// parseWeekStart accepts RFC 3339 or a bare date.
func parseWeekStart(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Newf(apperr.CodeInvalidInput, "invalid weekStart %q", raw)
}
