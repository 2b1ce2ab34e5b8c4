package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reconhub/auth-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "auth-service"

type AppMetrics struct {
	authLoginCounter             metric.Int64Counter
	authRefreshCounter           metric.Int64Counter
	authLogoutCounter            metric.Int64Counter
	authReqDuration              metric.Float64Histogram
	accessTokenValidationCounter metric.Int64Counter
	csrfValidationCounter        metric.Int64Counter
	middlewareValidationCounter  metric.Int64Counter
	rateLimitDecisionCounter     metric.Int64Counter
	rateLimitRetryAfter          metric.Float64Histogram
	abuseGuardCounter            metric.Int64Counter
	abuseGuardCooldown           metric.Float64Histogram
	refreshSecurityCounter       metric.Int64Counter
	sessionManagementCounter     metric.Int64Counter
	sessionRevokedCount          metric.Float64Histogram
	passwordPolicyViolations     metric.Int64Counter
	passwordLifecycleCounter     metric.Int64Counter
	expiredPasswordLogins        metric.Int64Counter
	credentialStateCacheCounter  metric.Int64Counter
	oauthReqDuration             metric.Float64Histogram
	oauthErrorCounter            metric.Int64Counter
	healthCheckResultCounter     metric.Int64Counter
	healthCheckDuration          metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	var err error

	if m.authLoginCounter, err = meter.Int64Counter("auth.login.attempts"); err != nil {
		return nil, err
	}
	if m.authRefreshCounter, err = meter.Int64Counter("auth.refresh.attempts"); err != nil {
		return nil, err
	}
	if m.authLogoutCounter, err = meter.Int64Counter("auth.logout.attempts"); err != nil {
		return nil, err
	}
	if m.authReqDuration, err = meter.Float64Histogram("auth.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of auth endpoint requests in seconds")); err != nil {
		return nil, err
	}
	if m.accessTokenValidationCounter, err = meter.Int64Counter("auth.access_token.validation.events"); err != nil {
		return nil, err
	}
	if m.csrfValidationCounter, err = meter.Int64Counter("security.csrf.validation.events"); err != nil {
		return nil, err
	}
	if m.middlewareValidationCounter, err = meter.Int64Counter("http.middleware.validation.events"); err != nil {
		return nil, err
	}
	if m.rateLimitDecisionCounter, err = meter.Int64Counter("http.rate_limit.decisions"); err != nil {
		return nil, err
	}
	if m.rateLimitRetryAfter, err = meter.Float64Histogram("http.rate_limit.retry_after",
		metric.WithUnit("s"),
		metric.WithDescription("Retry-after duration in seconds for throttled requests")); err != nil {
		return nil, err
	}
	if m.abuseGuardCounter, err = meter.Int64Counter("auth.abuse_guard.events"); err != nil {
		return nil, err
	}
	if m.abuseGuardCooldown, err = meter.Float64Histogram("auth.abuse_guard.cooldown",
		metric.WithUnit("s"),
		metric.WithDescription("Cooldown duration returned by auth abuse guard")); err != nil {
		return nil, err
	}
	if m.refreshSecurityCounter, err = meter.Int64Counter("auth.refresh.security.events"); err != nil {
		return nil, err
	}
	if m.sessionManagementCounter, err = meter.Int64Counter("session.management.events"); err != nil {
		return nil, err
	}
	if m.sessionRevokedCount, err = meter.Float64Histogram("session.revoked.count",
		metric.WithDescription("Number of sessions revoked per management action")); err != nil {
		return nil, err
	}
	if m.passwordPolicyViolations, err = meter.Int64Counter("password.policy.violations",
		metric.WithDescription("Password candidates rejected per policy rule")); err != nil {
		return nil, err
	}
	if m.passwordLifecycleCounter, err = meter.Int64Counter("password.lifecycle.events"); err != nil {
		return nil, err
	}
	if m.expiredPasswordLogins, err = meter.Int64Counter("password.expired.logins",
		metric.WithDescription("Successful logins whose password had already expired")); err != nil {
		return nil, err
	}
	if m.credentialStateCacheCounter, err = meter.Int64Counter("credential.state.cache.events"); err != nil {
		return nil, err
	}
	if m.oauthReqDuration, err = meter.Float64Histogram("auth.oauth.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of upstream OAuth provider calls in seconds")); err != nil {
		return nil, err
	}
	if m.oauthErrorCounter, err = meter.Int64Counter("auth.oauth.errors"); err != nil {
		return nil, err
	}
	if m.healthCheckResultCounter, err = meter.Int64Counter("health.check.results"); err != nil {
		return nil, err
	}
	if m.healthCheckDuration, err = meter.Float64Histogram("health.check.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of health dependency checks in seconds")); err != nil {
		return nil, err
	}
	return m, nil
}

func RecordAuthLogin(ctx context.Context, provider, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

func RecordAuthRefresh(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.accessTokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordCSRFValidation(ctx context.Context, outcome, pathGroup string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.csrfValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("path_group", pathGroup),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, layer, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordAuthAbuseGuardEvent(ctx context.Context, scope, action, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.abuseGuardCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordAuthAbuseCooldown(ctx context.Context, scope, action string, cooldown time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.abuseGuardCooldown.Record(ctx, cooldown.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("action", action),
	))
}

func RecordRefreshSecurityEvent(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.refreshSecurityCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordSessionManagementEvent(ctx context.Context, action, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionManagementCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

func RecordSessionRevokedCount(ctx context.Context, action string, count int64) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionRevokedCount.Record(ctx, float64(count), metric.WithAttributes(
		attribute.String("action", action),
	))
}

// RecordPasswordPolicyViolation counts one rejected candidate per violated
// rule, so dashboards can show which rules users trip most.
func RecordPasswordPolicyViolation(ctx context.Context, rule string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.passwordPolicyViolations.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}

func RecordPasswordLifecycleEvent(ctx context.Context, flow, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.passwordLifecycleCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
}

func RecordExpiredPasswordLogin(ctx context.Context) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.expiredPasswordLogins.Add(ctx, 1)
}

func RecordCredentialStateCacheEvent(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.credentialStateCacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordOAuthRequestDuration(ctx context.Context, step, status string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.oauthReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("status", status),
	))
}

func RecordOAuthError(ctx context.Context, reason string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.oauthErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}
