package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PaymentProvider cancels subscriptions at the external payment gateway.
type PaymentProvider interface {
	CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) error
}

// StripeProvider talks to the Stripe REST API with a secret key.
type StripeProvider struct {
	secretKey string
	apiBase   string
	client    *http.Client
}

// NewStripeProvider constructs a StripeProvider.
func NewStripeProvider(secretKey, apiBase string) *StripeProvider {
	if apiBase == "" {
		apiBase = "https://api.stripe.com"
	}
	return &StripeProvider{
		secretKey: secretKey,
		apiBase:   strings.TrimRight(apiBase, "/"),
		client:    &http.Client{Timeout: 20 * time.Second},
	}
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CancelSubscription deletes the subscription now or flags it to end with the
// current billing period.
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) error {
	if p.secretKey == "" {
		return fmt.Errorf("stripe secret key not configured")
	}

	endpoint := fmt.Sprintf("%s/v1/subscriptions/%s", p.apiBase, url.PathEscape(subscriptionID))

	var req *http.Request
	var err error
	if immediately {
		req, err = http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	} else {
		form := url.Values{}
		form.Set("cancel_at_period_end", "true")
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var stripeErr stripeErrorResponse
	if json.Unmarshal(body, &stripeErr) == nil && stripeErr.Error.Message != "" {
		return fmt.Errorf("stripe %d: %s", resp.StatusCode, stripeErr.Error.Message)
	}
	return fmt.Errorf("stripe returned status %d", resp.StatusCode)
}
