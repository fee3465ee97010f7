package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appidentity "github.com/saasforge/backend/internal/application/identity"
	"github.com/saasforge/backend/internal/domain/identity"
	"github.com/saasforge/backend/internal/interfaces/http/dto"
	"github.com/saasforge/backend/internal/interfaces/http/middleware"
)

// APIKeyHandler manages a subscriber's API keys
type APIKeyHandler struct {
	BaseHandler
	keys *appidentity.APIKeyService
}

// NewAPIKeyHandler creates an API key handler
func NewAPIKeyHandler(keys *appidentity.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

// CreateKeyRequest is the payload for creating a key
type CreateKeyRequest struct {
	Name string `json:"name" binding:"omitempty,max=255"`
}

// APIKeyResponse describes a key without its secret
type APIKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// CreatedKeyResponse includes the one-time plaintext
type CreatedKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// Create handles POST /api/v1/keys
func (h *APIKeyHandler) Create(c *gin.Context) {
	id, err := subscriberID(c)
	if err != nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		middleware.HandleBindingError(c, err)
		return
	}

	created, err := h.keys.Create(c.Request.Context(), id, req.Name)
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Created(c, CreatedKeyResponse{
		APIKeyResponse: toKeyResponse(created.Key),
		Key:            created.Plaintext,
	})
}

// List handles GET /api/v1/keys
func (h *APIKeyHandler) List(c *gin.Context) {
	id, err := subscriberID(c)
	if err != nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	keys, err := h.keys.List(c.Request.Context(), id)
	if err != nil {
		h.DomainError(c, err)
		return
	}

	out := make([]APIKeyResponse, len(keys))
	for i, key := range keys {
		out[i] = toKeyResponse(key)
	}
	h.Success(c, out)
}

// Delete handles DELETE /api/v1/keys/:id
func (h *APIKeyHandler) Delete(c *gin.Context) {
	id, err := subscriberID(c)
	if err != nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid key id")
		return
	}

	if err := h.keys.Delete(c.Request.Context(), keyID, id); err != nil {
		h.DomainError(c, err)
		return
	}
	h.NoContent(c)
}

func toKeyResponse(key *identity.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
}
