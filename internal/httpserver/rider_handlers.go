package httpserver

import (
	"errors"
	"net/http"

	"github.com/ninewheels/server/internal/payouts"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/pkg/responders"
)

type presenceRequest struct {
	Online bool `json:"online"`
}

func (h handlers) setPresence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.Orders.SetOnline(r.Context(), identity(r).UserID, req.Online); err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]bool{"online": req.Online})
}

type paymentStatus struct {
	Blocked       bool   `json:"blocked"`
	BlockedReason string `json:"blockedReason,omitempty"`
	Strikes       int    `json:"strikes"`
	Deactivated   bool   `json:"deactivated"`
}

type earningsResponse struct {
	CurrentWeek   *payouts.View        `json:"currentWeek"`
	AllTime       storage.PayoutTotals `json:"allTime"`
	PendingPayout *payouts.View        `json:"pendingPayout"`
	WalletBalance string               `json:"walletBalance"`
	PaymentStatus paymentStatus        `json:"paymentStatus"`
}

func (h handlers) riderEarnings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riderID := identity(r).UserID

	rider, err := h.Users.Get(ctx, riderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := earningsResponse{
		PaymentStatus: paymentStatus{
			Blocked:       rider.PaymentBlocked,
			BlockedReason: rider.PaymentBlockedReason,
			Strikes:       len(rider.Strikes),
			Deactivated:   rider.AccountDeactivated,
		},
	}

	current, err := h.Payouts.CurrentWeek(ctx, riderID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.respondError(w, r, err)
		return
	}
	if err == nil {
		resp.CurrentWeek = &current
	}

	all, err := h.Payouts.List(ctx, storage.PayoutFilter{RiderID: riderID})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	for i := range all {
		resp.AllTime.Gross += all[i].Totals.Gross
		resp.AllTime.Commission += all[i].Totals.Commission
		resp.AllTime.RiderNet += all[i].Totals.RiderNet
		resp.AllTime.Count += all[i].Totals.Count
		if all[i].Status == storage.PayoutPending && resp.PendingPayout == nil {
			pending := all[i]
			resp.PendingPayout = &pending
		}
	}

	wal, err := h.Wallet.Wallet(ctx, riderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp.WalletBalance = wal.Balance.String()

	responders.JSON(w, http.StatusOK, resp)
}

func (h handlers) riderGoldStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Gold.StatusFor(r.Context(), identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, status)
}

func (h handlers) walletBalance(w http.ResponseWriter, r *http.Request) {
	wal, err := h.Wallet.Wallet(r.Context(), identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, wal)
}

type useReferralRequest struct {
	ReferralCode string `json:"referralCode"`
}

func (h handlers) useReferralCode(w http.ResponseWriter, r *http.Request) {
	var req useReferralRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ref, err := h.Referral.Redeem(r.Context(), identity(r).UserID, req.ReferralCode)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusCreated, ref)
}

func (h handlers) referralStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Referral.StatsFor(r.Context(), identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, stats)
}
