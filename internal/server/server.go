package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	mid "github.com/openrepurpose/netprox/internal/server/middleware"
	"github.com/openrepurpose/netprox/internal/storage"
	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/distmat"
	"github.com/openrepurpose/netprox/pkg/geneindex"
	"github.com/openrepurpose/netprox/pkg/logger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// Init opens the gene index, the distance matrix, and the result store,
// then serves the query API until a shutdown signal arrives.
func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	artifactDir := util.GetEnvString("ARTIFACT_DIR", "artifacts")

	idx, err := geneindex.Load(util.GetEnvString("GENE_INDEX_PATH", filepath.Join(artifactDir, "gene_index.csv")))
	if err != nil {
		logger.Fatal("Failed to load gene index", "err", err)
	}

	matrix, err := distmat.Open(util.GetEnvString("DIST_MATRIX_PATH", filepath.Join(artifactDir, "dist_matrix.u16")), idx)
	if err != nil {
		logger.Fatal("Failed to open distance matrix", "err", err)
	}
	defer matrix.Close()

	var store *storage.Postgres
	if dbURL := util.GetEnv("DATABASE_URL"); dbURL != "" {
		store, err = storage.NewPostgres(ctx, dbURL)
		if err != nil {
			logger.Fatal("Failed to connect to result store", "err", err)
		}
		defer store.Close()
	} else {
		logger.Warn("DATABASE_URL not set, result routes disabled")
	}

	app := &mid.App{
		Index:  idx,
		Matrix: matrix,
		Store:  store,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port, "genes", idx.Len())
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
