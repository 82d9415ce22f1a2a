package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type stripeCheckoutSession struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type stripeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newStripeClient(apiKey string, baseURL string) *stripeClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.stripe.com"
	}
	return &stripeClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 12 * time.Second},
	}
}

type checkoutSessionParams struct {
	Currency       string
	UnitAmount     int64
	ProductName    string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

func (c *stripeClient) createCheckoutSession(
	ctx context.Context,
	params checkoutSessionParams,
) (stripeCheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("allow_promotion_codes", "true")
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	values.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.UnitAmount, 10))
	values.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	values.Set("line_items[0][quantity]", "1")
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, params.IdempotencyKey)
}

func (c *stripeClient) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
) (stripeCheckoutSession, error) {
	if c.apiKey == "" {
		return stripeCheckoutSession{}, errors.New("stripe_key_missing")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return stripeCheckoutSession{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return stripeCheckoutSession{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return stripeCheckoutSession{}, errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return stripeCheckoutSession{}, errors.New(message)
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return stripeCheckoutSession{}, err
	}
	if session.ID == "" || session.URL == "" {
		return stripeCheckoutSession{}, errors.New("stripe_response_invalid")
	}
	return session, nil
}
