package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/interfaces/http/dto"
	"github.com/saasforge/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message))
}

// DomainError maps a domain error to its HTTP response
func (h *BaseHandler) DomainError(c *gin.Context, err error) {
	code := dto.CodeForError(err)
	h.Error(c, dto.StatusForCode(code), code, err.Error())
}

// subscriberID extracts the authenticated subscriber id set by the auth
// middleware
func subscriberID(c *gin.Context) (uuid.UUID, error) {
	id, ok := middleware.GetSubscriberID(c)
	if !ok {
		return uuid.Nil, errors.New("subscriber not found in context")
	}
	return id, nil
}
