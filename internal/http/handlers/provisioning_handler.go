package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/services"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/Dhoini/workshop-relay/pkg/req"
	"github.com/Dhoini/workshop-relay/pkg/res"

	"github.com/gin-gonic/gin"
)

// AccountProvisioner creates accounts for learning-platform purchases
type AccountProvisioner interface {
	Provision(ctx context.Context, r domain.ProvisioningRequest, rawBody []byte) (*services.ProvisionResult, error)
}

// ProvisionResponse is returned to the learning platform
type ProvisionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type ProvisioningHandler struct {
	provisioner AccountProvisioner
	log         *logger.Logger
}

func NewProvisioningHandler(provisioner AccountProvisioner, log *logger.Logger) *ProvisioningHandler {
	return &ProvisioningHandler{provisioner: provisioner, log: log}
}

// HandleKajabiWebhook обрабатывает POST /webhooks/kajabi
func (h *ProvisioningHandler) HandleKajabiWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read provisioning request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Cannot read request body"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	// raw body is forwarded as-is, decode from a copy
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	body, err := req.HandleBody[domain.ProvisioningRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	result, err := h.provisioner.Provision(c.Request.Context(), *body, raw)
	if err != nil {
		h.log.Errorw("Provisioning failed", "email", body.Email, "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Failed to provision account"}, http.StatusInternalServerError)
		c.Abort()
		return
	}

	message := "Account already exists, purchase recorded"
	if result.UserCreated {
		message = "Account created, purchase recorded"
	}
	res.JsonResponse(c.Writer, ProvisionResponse{
		Success: true,
		Message: message,
		UserID:  result.UserID.String(),
	}, http.StatusOK)
}
