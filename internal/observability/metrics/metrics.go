package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes board-domain instruments.
type Metrics struct {
	cardMoves           metric.Int64Counter
	invitationsCreated  metric.Int64Counter
	invitationResponses metric.Int64Counter
	notificationErrors  metric.Int64Counter
	reconcileRepairs    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "taskboard"
	}
	meter := provider.Meter(name)

	cardMoves, err := meter.Int64Counter("taskboard_card_moves_total")
	if err != nil {
		return nil, err
	}
	invitationsCreated, err := meter.Int64Counter("taskboard_invitations_created_total")
	if err != nil {
		return nil, err
	}
	invitationResponses, err := meter.Int64Counter("taskboard_invitation_responses_total")
	if err != nil {
		return nil, err
	}
	notificationErrors, err := meter.Int64Counter("taskboard_notification_errors_total")
	if err != nil {
		return nil, err
	}
	reconcileRepairs, err := meter.Int64Counter("taskboard_reconcile_repairs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cardMoves:           cardMoves,
		invitationsCreated:  invitationsCreated,
		invitationResponses: invitationResponses,
		notificationErrors:  notificationErrors,
		reconcileRepairs:    reconcileRepairs,
	}, nil
}

// RecordCardMove counts a persisted card move.
func (m *Metrics) RecordCardMove(ctx context.Context, crossColumn bool) {
	if m == nil {
		return
	}
	kind := "reorder"
	if crossColumn {
		kind = "cross_column"
	}
	m.cardMoves.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("move_kind", kind))...))
}

func (m *Metrics) RecordInvitationCreated(ctx context.Context, invitationType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("invitation_type", strings.TrimSpace(invitationType)))
	m.invitationsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordInvitationResponse(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.invitationResponses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotificationError counts a swallowed notification failure.
func (m *Metrics) RecordNotificationError(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("channel", strings.TrimSpace(channel)))
	m.notificationErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReconcileRepairs(ctx context.Context, kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("repair_kind", strings.TrimSpace(kind)))
	m.reconcileRepairs.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"move_kind":       {},
	"invitation_type": {},
	"status":          {},
	"status_code":     {},
	"channel":         {},
	"repair_kind":     {},
	"route":           {},
	"method":          {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
