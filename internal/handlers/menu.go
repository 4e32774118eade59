package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

type menuItemRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

func (h *HTTPHandler) GetMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.menuService.GetMenuItems(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{"items": items})
}

func (h *HTTPHandler) GetMenuItemByID(w http.ResponseWriter, r *http.Request) {
	item, err := h.menuService.GetMenuItemByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{"item": item})
}

func (h *HTTPHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	item, err := h.menuService.CreateMenuItem(r.Context(), req.Name, req.Description, req.Price)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *HTTPHandler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	item, err := h.menuService.UpdateMenuItem(r.Context(), mux.Vars(r)["id"], req.Name, req.Description, req.Price)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{"item": item})
}

func (h *HTTPHandler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := h.menuService.DeleteMenuItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{"message": "Menu item deleted"})
}
