package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("status", "ACCEPTED"),
		attribute.String("user_id", "456"),
		attribute.String("repair_kind", "dangling_column"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("expected user_id to be dropped")
		}
	}
}

func TestRecordersToleratesNilAndNoop(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.RecordCardMove(context.Background(), true)
	nilMetrics.RecordReconcileRepairs(context.Background(), "orphan_card", 3)

	m, err := New(Config{ServiceName: "taskboard-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordCardMove(context.Background(), false)
	m.RecordInvitationCreated(context.Background(), "BOARD_INVITATION")
	m.RecordInvitationResponse(context.Background(), "REJECTED")
	m.RecordNotificationError(context.Background(), "email")
	m.RecordReconcileRepairs(context.Background(), "orphan_card", 2)
}
