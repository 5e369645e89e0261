package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal  metric.Int64Counter
	TokenRequestsTotal     metric.Int64Counter
	RecipeCreatedTotal     metric.Int64Counter
	ImageUploadsTotal      metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments only once.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() *AppMetrics {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("recipe-api")
		var err error
		m := &AppMetrics{}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of user registration requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.TokenRequestsTotal, err = meter.Int64Counter(
			"token_requests_total",
			metric.WithDescription("Total number of token requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create token_requests_total: %v", err)
		}

		m.RecipeCreatedTotal, err = meter.Int64Counter(
			"recipes_created_total",
			metric.WithDescription("Total number of recipes created"),
			metric.WithUnit("{recipe}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create recipes_created_total: %v", err)
		}

		m.ImageUploadsTotal, err = meter.Int64Counter(
			"recipe_image_uploads_total",
			metric.WithDescription("Total number of recipe image uploads accepted"),
			metric.WithUnit("{upload}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create recipe_image_uploads_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		appMetrics = m
	})
	return appMetrics
}

// Get returns the initialized metrics instance, or nil before InitAppMetrics.
func Get() *AppMetrics {
	return appMetrics
}
