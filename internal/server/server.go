package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"magic-workflow/config"
	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/deps"
	"magic-workflow/internal/handler"
	"magic-workflow/internal/queue"
	"magic-workflow/internal/router"
	"magic-workflow/internal/service"
	"magic-workflow/internal/storage"
	"magic-workflow/internal/taskrunner"
	"magic-workflow/log"
)

const shutdownTimeout = 10 * time.Second

// StartBackend wires the service stack and serves the API until SIGINT or
// SIGTERM.
func StartBackend(bins deps.Binaries) error {
	paths, err := appdirs.Resolve()
	if err != nil {
		return fmt.Errorf("resolve app dirs: %w", err)
	}

	runner := taskrunner.New(taskrunner.Config{
		QueueSize:         config.Conf.Runner.QueueSize,
		BackgroundWorkers: config.Conf.Runner.BackgroundWorkers,
	})
	defer runner.Close()

	svc := service.NewService(storage.NewJSONStore(), runner, bins, paths)
	defer svc.Close()

	hub := handler.NewHub()
	svc.SetNotifier(hub)

	if config.Conf.Queue.Enabled {
		q := queue.NewQueue(queue.ConfigFrom(config.Conf.Queue))
		defer q.Close()
		svc.SetTaskQueue(q)
		go func() {
			if err := queue.StartWorker(q, svc); err != nil {
				log.GetLogger().Error("[Server] queue worker stopped", zap.Error(err))
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.SetupRouter(engine, handler.NewHandler(svc, hub))

	addr := fmt.Sprintf("%s:%d", config.Conf.Server.Host, config.Conf.Server.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.GetLogger().Info("[Server] listening", zap.String("addr", addr), zap.String("projects", appdirs.ProjectRootFor(paths)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.GetLogger().Info("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
