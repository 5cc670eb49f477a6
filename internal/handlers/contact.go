package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

type ContactHandler struct {
	contactService services.ContactServiceInterface
}

func NewContactHandler(contactService services.ContactServiceInterface) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

type ContactRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,max=32"`
	Relationship string `json:"relationship" validate:"omitempty,max=50"`
}

func (c ContactRequest) params() models.ContactParams {
	return models.ContactParams{Name: c.Name, Phone: c.Phone, Relationship: c.Relationship}
}

type ContactResponse struct {
	Contact *models.EmergencyContact `json:"contact,omitempty"`
	Message string                   `json:"message,omitempty"`
}

type ContactListResponse struct {
	Contacts []models.EmergencyContact `json:"contacts"`
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	contacts, err := h.contactService.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list contacts", err)
		return
	}
	if contacts == nil {
		contacts = []models.EmergencyContact{}
	}

	writeJSON(w, http.StatusOK, ContactListResponse{Contacts: contacts})
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contact, err := h.contactService.Create(r.Context(), user.ID, req.params())
	if err != nil {
		writeServiceError(w, r, "create contact", err)
		return
	}

	writeJSON(w, http.StatusCreated, ContactResponse{Contact: contact})
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	contactID, ok := pathUUID(w, r, "id", "contact ID")
	if !ok {
		return
	}

	var req ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contact, err := h.contactService.Update(r.Context(), user.ID, contactID, req.params())
	if err != nil {
		writeServiceError(w, r, "update contact", err)
		return
	}

	writeJSON(w, http.StatusOK, ContactResponse{Contact: contact})
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	contactID, ok := pathUUID(w, r, "id", "contact ID")
	if !ok {
		return
	}

	if err := h.contactService.Delete(r.Context(), user.ID, contactID); err != nil {
		writeServiceError(w, r, "delete contact", err)
		return
	}

	writeJSON(w, http.StatusOK, ContactResponse{Message: "Contact deleted"})
}

func (h *ContactHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	contactID, ok := pathUUID(w, r, "id", "contact ID")
	if !ok {
		return
	}

	contact, err := h.contactService.SetPrimary(r.Context(), user.ID, contactID)
	if err != nil {
		writeServiceError(w, r, "set primary contact", err)
		return
	}

	writeJSON(w, http.StatusOK, ContactResponse{Contact: contact})
}
