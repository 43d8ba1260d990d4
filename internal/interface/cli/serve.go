package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coordinatorsvc/coordinator/internal/application/archivetask"
	"github.com/coordinatorsvc/coordinator/internal/application/coordinator"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/foi"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/itm"
	"github.com/coordinatorsvc/coordinator/internal/infra/client/iqube"
	"github.com/coordinatorsvc/coordinator/internal/infra/config"
	"github.com/coordinatorsvc/coordinator/internal/infra/persistence/postgres"
	"github.com/coordinatorsvc/coordinator/internal/infra/secret"
	"github.com/coordinatorsvc/coordinator/internal/infra/share"
	coordinatorhttp "github.com/coordinatorsvc/coordinator/internal/interface/http"
)

func newServeCmd(baseDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator's HTTP server",
		RunE: func(c *cobra.Command, _ []string) error {
			return serve(*baseDir)
		},
	}
}

// serve wires the full composition root: settings, logger, database,
// migrations, secrets, share gateway, downstream HTTP clients, the archive
// scheduler, and the coordinator itself, then starts the HTTP server.
func serve(baseDir string) error {
	settings, err := config.LoadSettings(baseDir)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger, err := newLogger(settings)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	db, err := openDB(settings)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.NewMigrator(db).Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	secrets, err := secret.Load(settings.JWTSecretFile, settings.IsLocal())
	if err != nil {
		return fmt.Errorf("load jwt secret: %w", err)
	}

	addr, shareName, sourceRoot, err := share.ParseUNC(settings.SMBUncPath)
	if err != nil {
		return fmt.Errorf("parse SMB_UNC_PATH: %w", err)
	}
	gateway, err := share.Dial(context.Background(), share.Config{
		Addr:           addr,
		ShareName:      shareName,
		User:           settings.SMBUsername,
		Password:       settings.SMBPassword,
		SourceRoot:     sourceRoot,
		ArchiveRoot:    settings.SMBArchiveSubpath,
		IgnoreSuffixes: settings.IgnoreSuffixes,
	})
	if err != nil {
		return fmt.Errorf("dial smb share: %w", err)
	}
	defer gateway.Close()

	foiClient := foi.New(settings.FOIAPIURL, settings.FOITimeout)
	itmClient := itm.New(settings.ITMAPIURL, settings.ITMConsumerType, settings.ITMSourceSystem, secrets.OutboundToken, settings.ITMTimeout)
	iqubeClient := iqube.New(settings.IQubeAPIURL, settings.IQubeTimeout)

	archive := archivetask.New(settings.ArchiveTaskConcurrency, logger)

	repo := postgres.NewRepository(db)
	tx := postgres.NewTxManager(db)

	coord := coordinator.New(
		coordinator.Config{
			SourceRoot:         sourceRoot,
			ProcessConcurrency: settings.ProcessConcurrency,
			Stability: share.StabilityPolicy{
				MinAge:        settings.SMBStabilityMinAge,
				CheckCount:    settings.SMBStabilityCheckCount,
				CheckInterval: settings.SMBStabilityCheckInterval,
			},
			ITMConsumerType: settings.ITMConsumerType,
		},
		gateway, repo, tx, foiClient, itmClient, iqubeClient, archive,
		coordinator.NewFailpoints(settings.ITEnableFailpoints),
		logger,
	)

	router := coordinatorhttp.NewRouter(coordinatorhttp.Dependencies{
		Coordinator:    coord,
		Secrets:        secrets,
		Logger:         logger,
		ReadinessCheck: func(ctx context.Context) error { return db.PingContext(ctx) },
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.HTTPPort),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("coordinator listening", zap.Int("port", settings.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown did not complete cleanly", zap.Error(err))
	}

	archive.Shutdown(settings.ArchiveShutdownWait)
	return nil
}
