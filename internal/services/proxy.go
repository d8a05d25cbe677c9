package services

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/Dhoini/workshop-relay/pkg/logger"
)

const proxySource = "webhook-proxy"

// ProxyResult is returned to the caller of the webhook proxy
type ProxyResult struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Proxied bool   `json:"proxied"`
	Message string `json:"message"`
}

// WebhookProxy relays arbitrary bodies from the browser to the marketing
// webhook and copies them to fallback endpoints.
type WebhookProxy struct {
	primary   Destination
	fallbacks []Destination
	log       *logger.Logger
	now       func() time.Time
}

func NewWebhookProxy(primary Destination, fallbacks []Destination, log *logger.Logger) *WebhookProxy {
	return &WebhookProxy{primary: primary, fallbacks: fallbacks, log: log, now: time.Now}
}

// Forward sends body to the primary destination, then to every fallback with
// the primary status attached. Fallback failures are logged only.
func (p *WebhookProxy) Forward(ctx context.Context, body []byte) *ProxyResult {
	ctx = context.WithoutCancel(ctx)
	payload := p.enrich(body)

	res, err := p.primary.Dispatch(ctx, payload, nil)
	result := &ProxyResult{
		Success: err == nil,
		Status:  res.StatusCode,
		Proxied: true,
		Message: "Webhook proxied successfully",
	}
	if err != nil {
		p.log.Warnw("Primary webhook failed", "status", res.StatusCode, "error", err)
		result.Message = fmt.Sprintf("Primary webhook failed with status %d", res.StatusCode)
	}

	for _, fb := range p.fallbacks {
		copyPayload := maps.Clone(payload)
		meta := maps.Clone(payload["_meta"].(map[string]any))
		meta["fallback"] = true
		meta["primaryStatus"] = res.StatusCode
		copyPayload["_meta"] = meta

		if _, err := fb.Dispatch(ctx, copyPayload, nil); err != nil {
			p.log.Warnw("Fallback webhook failed", "destination", fb.Name(), "error", err)
		}
	}
	return result
}

func (p *WebhookProxy) enrich(body []byte) map[string]any {
	payload := map[string]any{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		payload = map[string]any{"rawData": string(body)}
	}

	if name, ok := payload["name"].(string); ok && name != "" {
		if id, _ := payload["external_user_id"].(string); id == "" {
			payload["external_user_id"] = GenerateExternalUserID(name)
		}
	}

	payload["_meta"] = map[string]any{
		"proxied":   true,
		"timestamp": p.now().UTC().Format(time.RFC3339),
		"source":    proxySource,
	}
	return payload
}
