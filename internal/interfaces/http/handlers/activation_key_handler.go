package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"keyauth.backend/internal/domain/entities"
	domainerrors "keyauth.backend/internal/domain/errors"
	"keyauth.backend/internal/interfaces/http/response"
	"keyauth.backend/pkg/utils"
)

// ActivationKeyService is the lifecycle API the handlers depend on.
type ActivationKeyService interface {
	CreateKey(ctx context.Context, input *entities.CreateKeyInput) (*entities.CreateKeyResponse, error)
	ListKeys(ctx context.Context) ([]entities.KeySummary, error)
	RevokeKey(ctx context.Context, key string) error
	DeleteKey(ctx context.Context, key string) error
	VerifyKey(ctx context.Context, input *entities.VerifyInput) (*entities.VerifiedUser, error)
	CountKeys(ctx context.Context) (int64, error)
}

type ActivationKeyHandler struct {
	service ActivationKeyService
}

func NewActivationKeyHandler(service ActivationKeyService) *ActivationKeyHandler {
	return &ActivationKeyHandler{service: service}
}

// CreateKey issues a new activation key.
// POST /api/admin/create-key
func (h *ActivationKeyHandler) CreateKey(c *gin.Context) {
	var input entities.CreateKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid request body"))
		return
	}

	created, err := h.service.CreateKey(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"success": true,
		"message": "Key created successfully",
		"key":     created.Key,
		"name":    created.Name,
		"type":    created.PlanType,
	})
}

// ListKeys returns keys with their derived status, newest first. Without a
// limit every key is returned.
// GET /api/admin/keys?page=&limit=
func (h *ActivationKeyHandler) ListKeys(c *gin.Context) {
	var query utils.PaginationParams
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, domainerrors.BadRequest("page and limit must be integers"))
		return
	}
	page := utils.GetPaginationParams(query.Page, query.Limit)

	keys, err := h.service.ListKeys(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success":    true,
		"total":      len(keys),
		"keys":       utils.Paginate(keys, page),
		"pagination": utils.CalculateMeta(len(keys), page),
	})
}

// RevokeKey deactivates a key permanently.
// PATCH /api/admin/revoke-key
func (h *ActivationKeyHandler) RevokeKey(c *gin.Context) {
	var input entities.KeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("key is required"))
		return
	}

	if err := h.service.RevokeKey(c.Request.Context(), input.Key); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success": true,
		"message": "Key revoked successfully",
	})
}

// DeleteKey removes a key.
// DELETE /api/admin/delete-key
func (h *ActivationKeyHandler) DeleteKey(c *gin.Context) {
	var input entities.KeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("key is required"))
		return
	}

	if err := h.service.DeleteKey(c.Request.Context(), input.Key); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success": true,
		"message": "Key deleted successfully",
	})
}

// VerifyKey checks a key for a device, binding it on first use.
// POST /api/verify
func (h *ActivationKeyHandler) VerifyKey(c *gin.Context) {
	var input entities.VerifyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("key and deviceId are required"))
		return
	}

	user, err := h.service.VerifyKey(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success": true,
		"message": "Key verified successfully",
		"user":    user,
	})
}
