// serve.go
//
// A hypertext-driven ITSM REST API service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of itsm-api.
// itsm-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// itsm-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with itsm-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	swagger "github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/config"
	"github.com/localnerve/itsm-api/internal/database"
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/handlers"
	"github.com/localnerve/itsm-api/internal/logger"
	"github.com/localnerve/itsm-api/internal/metrics"
	"github.com/localnerve/itsm-api/internal/middleware"
	"github.com/localnerve/itsm-api/internal/render"
	"github.com/localnerve/itsm-api/internal/resources"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

// backend is what both subcommands open before doing their work.
type backend struct {
	cfg   *config.Config
	db    *gorm.DB
	blobs blobstore.Store
	svc   *resources.Service
}

func (b *backend) Close() {
	if err := database.Close(b.db); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func openBackend(ctx context.Context, reg prometheus.Registerer) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to open attachment storage: %w", err)
	}
	if s3s, ok := blobs.(*blobstore.S3Store); ok {
		if err := s3s.EnsureBucket(ctx); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to prepare attachment bucket: %w", err)
		}
	}

	svc := resources.NewService(docstore.New(db), blobs,
		resources.WithLogger(log),
		resources.WithMetrics(metrics.New(reg)),
	)
	return &backend{cfg: cfg, db: db, blobs: blobs, svc: svc}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	b, err := openBackend(ctx, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.cfg.SeedFile != "" {
		fixture, err := readFixture(b.cfg.SeedFile)
		if err != nil {
			return err
		}
		seeded, err := b.svc.SeedIfEmpty(ctx, fixture)
		if err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}
		slog.Info("seed file processed", "file", b.cfg.SeedFile, "seeded", seeded)
	}

	app := newApp(b)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		slog.Info("gracefully shutting down")
		_ = app.Shutdown()
	}()

	slog.Info("starting server", "port", b.cfg.Port, "database", b.cfg.DBType, "storage", b.cfg.StorageType)
	if err := app.Listen(":" + b.cfg.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func newApp(b *backend) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New())

	// Prometheus metrics
	prom := fiberprometheus.New("itsm")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	healthHandler := &handlers.HealthHandler{Config: b.cfg, DB: b.db, Blobs: b.blobs}
	app.Get("/health", healthHandler.Check)

	// Resources, negotiated as JSON or HTML
	app.Use(middleware.Representation())
	resourceHandler := &handlers.ResourceHandler{Renderer: render.New()}
	resourceHandler.Register(app, resources.All(b.svc))

	// 404 handler
	app.Use(handlers.NotFound)

	return app
}
