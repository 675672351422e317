package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"school-server-go/db"
	"school-server-go/handlers"
	"school-server-go/models"
	"school-server-go/service"
)

var seedOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Connects to the configured store, applies pending migrations and
serves the staff and student routes until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&seedOnStart, "seed", false, "add sample records when the store is empty")
	rootCmd.AddCommand(serveCmd)
}

// services opens the configured backend and builds both record services on it.
func services(ctx context.Context) (*db.Conn, *service.StaffService, *service.StudentService, error) {
	conn, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := conn.MigrateUp(ctx); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	staff := service.New[models.Staff](
		db.NewStore[models.Staff](conn, service.StaffSchema.Collection, service.StaffSchema.UniqueColumns()...),
		service.StaffSchema)
	students := service.New[models.Student](
		db.NewStore[models.Student](conn, service.StudentSchema.Collection, service.StudentSchema.UniqueColumns()...),
		service.StudentSchema)
	return conn, staff, students, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)
	conn, staff, students, err := services(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if seedOnStart {
		if err := seed(ctx, staff, students); err != nil {
			logger.Warningf("seeding skipped: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handlers.NewRouter(staff, students),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("starting server on %s (store: %s)", srv.Addr, conn.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Annotate(err, "server failed")
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Trace(srv.Shutdown(shutdownCtx))
}
