/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package scheduler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blockarchitech.com/scheduler/internal/auth"
	"blockarchitech.com/scheduler/internal/config"
	"blockarchitech.com/scheduler/internal/handler"
	"blockarchitech.com/scheduler/internal/metrics"
	"blockarchitech.com/scheduler/internal/repository"
	"blockarchitech.com/scheduler/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

const serviceName = "scheduler"

type App struct {
	logger *zap.Logger
	cfg    *config.Config
	server *http.Server
}

func NewApp() *App {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	return &App{
		logger: logger,
		cfg:    cfg,
	}
}

func (a *App) Run() {
	defer a.logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tp *sdktrace.TracerProvider
	if a.cfg.OtelExporterEndpoint != "" {
		tp = a.initTracerProvider(ctx)
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				a.logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}

	repo, err := a.initRepository(ctx)
	if err != nil {
		a.logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	verifier, err := auth.NewJWKSVerifier(ctx, a.cfg.JWKSURL, a.cfg.AuthIssuer, a.logger)
	if err != nil {
		a.logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	metrics.Register()
	tracer := otel.Tracer(serviceName)

	queryGateway := service.NewQueryGateway(repo, tracer, a.logger)
	settingsService := service.NewSettingsService(repo, tracer, a.logger)
	integrationService := service.NewIntegrationService(repo, a.cfg.OAuthProviders, a.cfg.SecretKey, tracer, a.logger)
	a.logger.Info("Integration providers configured", zap.Int("count", len(a.cfg.OAuthProviders)))

	handlers := handler.NewHttpHandlers(a.logger, a.cfg, verifier, queryGateway, settingsService, integrationService, tracer)

	router := a.setupRouter(handlers, tp)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		a.logger.Info("Server starting", zap.String("address", a.server.Addr), zap.String("storage", a.cfg.StorageType))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal("Could not listen on address", zap.String("address", a.server.Addr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.logger.Info("Server shutting down...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := a.server.Shutdown(ctxShutdown); err != nil {
		a.logger.Error("Server shutdown failed", zap.Error(err))
		return
	}
	a.logger.Info("Server exited properly")
}

func (a *App) initTracerProvider(ctx context.Context) *sdktrace.TracerProvider {
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(a.cfg.OtelExporterEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		a.logger.Fatal("Failed to create OTLP HTTP trace exporter", zap.Error(err))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(a.cfg.Version),
		),
	)
	if err != nil {
		a.logger.Fatal("Failed to create OpenTelemetry resource", zap.Error(err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	a.logger.Info("OTLP HTTP trace exporter initialized", zap.String("endpoint", a.cfg.OtelExporterEndpoint))
	return tp
}

func (a *App) initRepository(ctx context.Context) (repository.Repository, error) {
	switch a.cfg.StorageType {
	case config.StorageFirestore:
		if a.cfg.GCPProjectID == "" {
			return nil, fmt.Errorf("firestore storage selected but GCP_PROJECT_ID is not set")
		}
		return repository.NewFirestoreRepository(ctx, a.cfg.GCPProjectID, a.cfg.SecretKey, a.logger)
	case config.StorageSQLite:
		return repository.NewSQLiteRepository(ctx, a.cfg.SQLitePath, a.cfg.SecretKey, a.logger)
	case config.StorageInMemory:
		a.logger.Warn("using inmemory repository. Did you mean to do this?")
		return repository.NewInMemoryRepository(a.logger), nil
	default:
		return nil, fmt.Errorf("invalid storage type: %s", a.cfg.StorageType)
	}
}

func (a *App) setupRouter(handlers *handler.HttpHandlers, tp *sdktrace.TracerProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if tp != nil {
		router.Use(otelgin.Middleware(serviceName+"-http", otelgin.WithTracerProvider(tp)))
	}

	handlers.RegisterRoutes(router)

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/robots.txt", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain")
		c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
