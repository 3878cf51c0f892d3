package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/pkg/responders"
)

func (h handlers) getPromos(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Promos.Get(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, cfg)
}

// updatePromoSection replaces one promo section, leaving the others
// untouched. Section is one of referral, streak, gold-status.
func (h handlers) updatePromoSection(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Promos.Get(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	section := chi.URLParam(r, "section")
	switch section {
	case "referral":
		if err := decode(r, &cfg.Referral); err != nil {
			h.respondError(w, r, err)
			return
		}
	case "streak":
		if err := decode(r, &cfg.Streak); err != nil {
			h.respondError(w, r, err)
			return
		}
	case "gold-status":
		if err := decode(r, &cfg.GoldStatus); err != nil {
			h.respondError(w, r, err)
			return
		}
	default:
		h.respondError(w, r, apperr.Newf(apperr.CodeInvalidInput, "unknown promo section %q", section))
		return
	}

	updated, err := h.Promos.Update(r.Context(), cfg, identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, updated)
}

type togglePromosRequest struct {
	Enabled bool `json:"enabled"`
}

func (h handlers) togglePromos(w http.ResponseWriter, r *http.Request) {
	var req togglePromosRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	cfg, err := h.Promos.Get(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cfg.Referral.Enabled = req.Enabled
	cfg.Streak.Enabled = req.Enabled
	cfg.GoldStatus.Enabled = req.Enabled

	updated, err := h.Promos.Update(r.Context(), cfg, identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, updated)
}

type generatePayoutsRequest struct {
	WeekStart string `json:"weekStart"`
}

func (h handlers) generatePayouts(w http.ResponseWriter, r *http.Request) {
	var req generatePayoutsRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	weekStart, err := parseWeekStart(req.WeekStart)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	added, err := h.Payouts.GenerateForWeek(r.Context(), weekStart)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]int{"ordersAdded": added})
}

func (h handlers) unblockRider(w http.ResponseWriter, r *http.Request) {
	unblocked, err := h.Actions.Unblock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]bool{"unblocked": unblocked})
}

type deactivateRiderRequest struct {
	Reason string `json:"reason"`
}

func (h handlers) deactivateRider(w http.ResponseWriter, r *http.Request) {
	var req deactivateRiderRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "deactivated by admin"
	}
	deactivated, err := h.Actions.Deactivate(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]bool{"deactivated": deactivated})
}

type reactivateRiderRequest struct {
	UnblockPayment bool `json:"unblockPayment"`
}

func (h handlers) reactivateRider(w http.ResponseWriter, r *http.Request) {
	var req reactivateRiderRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	reactivated, err := h.Actions.Reactivate(r.Context(), chi.URLParam(r, "id"), req.UnblockPayment)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]bool{"reactivated": reactivated})
}

type adjustWalletRequest struct {
	Amount string `json:"amount"` // signed naira, e.g. "-150.00"
	Note   string `json:"note"`
}

func (h handlers) adjustWallet(w http.ResponseWriter, r *http.Request) {
	var req adjustWalletRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	amount, err := money.FromNaira(req.Amount)
	if err != nil {
		h.respondError(w, r, apperr.Newf(apperr.CodeInvalidInput, "invalid amount %q", req.Amount))
		return
	}
	if req.Note == "" {
		h.respondError(w, r, apperr.New(apperr.CodeInvalidInput, "note is required"))
		return
	}

	tx, wal, err := h.Wallet.Adjust(r.Context(), chi.URLParam(r, "id"), amount, req.Note, identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{
		"transaction": tx,
		"wallet":      wal,
	})
}
