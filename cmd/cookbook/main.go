package main

import (
	"context"
	"log/slog"
	"os"

	"cookbook/config"
	"cookbook/internal/delivery"
	"cookbook/internal/delivery/http"
	"cookbook/internal/delivery/http/middleware"
	"cookbook/internal/delivery/http/router/handler"
	"cookbook/internal/domain/service"
	"cookbook/internal/infra/auth"
	logs "cookbook/internal/infra/log"
	"cookbook/internal/infra/metrics"
	"cookbook/internal/infra/persistence/postgres"
	"cookbook/internal/infra/pubsub"
	"cookbook/internal/usecase/impl"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			postgres.New,
			metrics.NewRegistry,
			metrics.NewHTTPMetrics,
			newAuthMetrics,
		),
		pubsub.Module,
	)
}

// newAuthMetrics registers the operation counter only when scraping is enabled.
func newAuthMetrics(cfg *config.Config, reg *prometheus.Registry) service.AuthMetrics {
	if cfg.Metrics == nil || !cfg.Metrics.Enabled {
		return metrics.NoopAuthMetrics{}
	}

	return metrics.NewAuthMetrics(reg)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTService,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewProfileService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewUserHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
