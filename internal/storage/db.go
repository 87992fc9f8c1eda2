package storage

import (
	"os"
	"path/filepath"

	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/types"
	"magic-workflow/log"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var appDirsResolver = appdirs.Resolve

func InitDB() {
	dbPath, err := resolveDBPath()
	if err != nil {
		log.GetLogger().Fatal("failed to resolve database path", zap.Error(err))
	}
	if err = OpenDB(dbPath); err != nil {
		log.GetLogger().Fatal("failed to open database", zap.String("path", dbPath), zap.Error(err))
	}
	log.GetLogger().Info("Database initialized successfully", zap.String("path", dbPath))
}

// OpenDB opens the sqlite file at dbPath into DB and migrates the schema.
func OpenDB(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	if err = db.AutoMigrate(&types.ProjectRecord{}, &types.EditRecord{}); err != nil {
		return err
	}
	DB = db
	return nil
}

func resolveDBPath() (string, error) {
	dirs, err := appDirsResolver()
	if err != nil {
		return "", err
	}
	return appdirs.DBPathFor(dirs), nil
}
