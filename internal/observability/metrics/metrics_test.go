package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("package_id", "p500"),
		attribute.String("telegram_user_id", "8123456789"),
		attribute.String("outcome", "processed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "telegram_user_id" {
			t.Fatalf("expected user id label to be dropped")
		}
	}
}
