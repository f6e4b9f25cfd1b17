package server

import (
	"errors"
	"net/http"

	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/storage"
)

// Entity CRUD below covers creation and reads only. All mutation goes
// through the command runtime so guards, events, and idempotency apply
// uniformly.

func (h *Handlers) HandleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var rec model.Recipe
	if err := decodeJSON(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rec.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	rec.TenantID = tenantID

	created, err := h.DB.CreateRecipe(r.Context(), rec)
	if err != nil {
		h.Logger.Error("create recipe failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) HandleGetRecipe(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	rec, err := h.DB.GetRecipe(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		h.writeEntityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) HandleCreateDish(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var d model.Dish
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if d.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	d.TenantID = tenantID

	created, err := h.DB.CreateDish(r.Context(), d)
	if err != nil {
		h.Logger.Error("create dish failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) HandleGetDish(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	d, err := h.DB.GetDish(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		h.writeEntityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) HandleCreateMenu(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var m model.Menu
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if m.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	m.TenantID = tenantID

	created, err := h.DB.CreateMenu(r.Context(), m)
	if err != nil {
		h.Logger.Error("create menu failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) HandleGetMenu(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	m, err := h.DB.GetMenu(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		h.writeEntityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) HandleCreatePrepTask(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var t model.PrepTask
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if t.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	t.TenantID = tenantID

	created, err := h.DB.CreatePrepTask(r.Context(), t)
	if err != nil {
		h.Logger.Error("create prep task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) HandleGetPrepTask(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	t, err := h.DB.GetPrepTask(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		h.writeEntityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) HandleCreatePrepListItem(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var it model.PrepListItem
	if err := decodeJSON(r, &it); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if it.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	it.TenantID = tenantID

	created, err := h.DB.CreatePrepListItem(r.Context(), it)
	if err != nil {
		h.Logger.Error("create prep list item failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) HandleCreateShipment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes)
	var s model.Shipment
	if err := decodeJSON(r, &s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.SupplierName == "" {
		writeError(w, http.StatusBadRequest, "supplier_name is required")
		return
	}
	s.TenantID = tenantID

	created, err := h.DB.CreateShipment(r.Context(), s)
	if err != nil {
		h.Logger.Error("create shipment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) writeEntityError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.Logger.Error("entity read failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
