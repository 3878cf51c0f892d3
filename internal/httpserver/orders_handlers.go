package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/pkg/responders"
)

type createOrderRequest struct {
	ServiceType string `json:"serviceType"`
	Price       string `json:"price"` // naira, e.g. "5000" or "5000.50"
}

func (h handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	price, err := money.FromNaira(req.Price)
	if err != nil {
		h.respondError(w, r, apperr.Newf(apperr.CodeInvalidInput, "invalid price %q", req.Price))
		return
	}

	order, err := h.Orders.Create(r.Context(), identity(r).UserID, storage.ServiceType(req.ServiceType), price)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusCreated, order)
}

func (h handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id := identity(r)
	if id.Role != storage.RoleAdmin && order.CustomerID != id.UserID && order.RiderID != id.UserID {
		h.respondError(w, r, apperr.New(apperr.CodeForbidden, "not your order"))
		return
	}
	responders.JSON(w, http.StatusOK, order)
}

func (h handlers) acceptOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Accept(r.Context(), chi.URLParam(r, "id"), identity(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, order)
}

func (h handlers) rejectOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.Reject(r.Context(), chi.URLParam(r, "id"), identity(r).UserID); err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// requireAssignedRider verifies the caller is the rider the order was
// assigned to. Admins pass.
func (h handlers) requireAssignedRider(r *http.Request, orderID string) error {
	order, err := h.Orders.Get(r.Context(), orderID)
	if err != nil {
		return err
	}
	id := identity(r)
	if id.Role != storage.RoleAdmin && order.RiderID != id.UserID {
		return apperr.New(apperr.CodeForbidden, "not your order")
	}
	return nil
}

func (h handlers) pickupOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if err := h.requireAssignedRider(r, orderID); err != nil {
		h.respondError(w, r, err)
		return
	}
	order, err := h.Orders.Advance(r.Context(), orderID, storage.OrderAssigned, storage.OrderPickedUp)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, order)
}

func (h handlers) startDelivery(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if err := h.requireAssignedRider(r, orderID); err != nil {
		h.respondError(w, r, err)
		return
	}
	order, err := h.Orders.Advance(r.Context(), orderID, storage.OrderPickedUp, storage.OrderDelivering)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, order)
}

func (h handlers) deliverOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if err := h.requireAssignedRider(r, orderID); err != nil {
		h.respondError(w, r, err)
		return
	}
	order, err := h.Orders.Deliver(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, order)
}

func (h handlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id := identity(r)
	if id.Role != storage.RoleAdmin && order.CustomerID != id.UserID {
		h.respondError(w, r, apperr.New(apperr.CodeForbidden, "not your order"))
		return
	}
	order, err = h.Orders.Cancel(r.Context(), order.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, order)
}
