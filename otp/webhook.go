package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"admission-gateway/otp/domain"
)

const defaultWebhookTimeout = 5 * time.Second

type webhookPayload struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

// NewWebhookSender entrega o código por POST JSON para o serviço de email.
// Qualquer status fora de 2xx é falha de entrega.
func NewWebhookSender(url string, client *http.Client) Sender {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return func(ctx context.Context, identity string, purpose domain.Purpose, code string) error {
		body, err := json.Marshal(webhookPayload{Email: identity, Purpose: string(purpose), Code: code})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("otp delivery request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("otp delivery: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("otp delivery: unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}
