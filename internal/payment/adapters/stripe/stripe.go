package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/topup/internal/payment/domain"
)

const (
	providerName     = "stripe"
	signatureHeader  = "Stripe-Signature"
	defaultTolerance = 5 * time.Minute
)

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func NewAdapter(webhookSecret string) (*Adapter, error) {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return nil, errors.New("webhook secret required")
	}
	return &Adapter{
		webhookSecret: secret,
		tolerance:     defaultTolerance,
		now:           time.Now,
	}, nil
}

func (a *Adapter) Provider() string {
	return providerName
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get(signatureHeader))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if a.tolerance > 0 {
		age := a.now().UTC().Sub(time.Unix(ts, 0).UTC())
		if age > a.tolerance || age < -a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID       string         `json:"id"`
			Created  int64          `json:"created"`
			Metadata map[string]any `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.CheckoutEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	if strings.TrimSpace(event.Type) != paymentdomain.EventTypeCheckoutCompleted {
		return nil, paymentdomain.ErrEventIgnored
	}

	return &paymentdomain.CheckoutEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		Type:            event.Type,
		Metadata:        flattenMetadata(event.Data.Object.Metadata),
		OccurredAt:      occurredAt(event.Data.Object.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func occurredAt(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

// flattenMetadata normalizes provider metadata values to strings. Stripe
// sends metadata as strings, but decoded JSON may surface numbers when a
// payload was built by hand.
func flattenMetadata(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for key, value := range metadata {
		switch cast := value.(type) {
		case string:
			out[key] = strings.TrimSpace(cast)
		case float64:
			out[key] = strconv.FormatInt(int64(cast), 10)
		case json.Number:
			out[key] = cast.String()
		case int64:
			out[key] = strconv.FormatInt(cast, 10)
		case bool:
			out[key] = strconv.FormatBool(cast)
		}
	}
	return out
}
