package main

import (
	"os"

	"go.uber.org/zap"

	"magic-workflow/config"
	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/deps"
	"magic-workflow/internal/server"
	"magic-workflow/internal/storage"
	"magic-workflow/log"
)

func main() {
	log.InitLogger()
	defer log.GetLogger().Sync()

	if _, err := config.LoadOrCreateConfig(); err != nil {
		log.GetLogger().Error("load config failed", zap.Error(err))
		os.Exit(1)
	}
	if err := config.CheckConfig(); err != nil {
		log.GetLogger().Error("invalid config", zap.Error(err))
		os.Exit(1)
	}
	appdirs.SetWorkspace(appdirs.Workspace{
		WorkDir:   config.Conf.App.WorkDir,
		ConfigDir: config.Conf.App.ConfigDir,
	})

	storage.InitDB()

	bins, err := deps.CheckDependency()
	if err != nil {
		log.GetLogger().Error("dependency check failed", zap.Error(err))
		os.Exit(1)
	}
	if err = server.StartBackend(bins); err != nil {
		log.GetLogger().Error("backend stopped", zap.Error(err))
		os.Exit(1)
	}
}
