package storage

import (
	"errors"
	"time"

	"magic-workflow/internal/types"

	"gorm.io/gorm"
)

var errDBNotInitialized = errors.New("database not initialized")

// SaveProject upserts by pid.
func SaveProject(project *types.ProjectRecord) error {
	if DB == nil {
		return errDBNotInitialized
	}
	var existing types.ProjectRecord
	result := DB.Where("pid = ?", project.Pid).First(&existing)

	if result.Error == nil {
		project.Id = existing.Id
		project.CreateTime = existing.CreateTime
		return DB.Save(project).Error
	} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return DB.Create(project).Error
	}
	return result.Error
}

func GetProject(pid string) (*types.ProjectRecord, error) {
	if DB == nil {
		return nil, errDBNotInitialized
	}
	var project types.ProjectRecord
	if err := DB.Where("pid = ?", pid).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// RecentProjects lists projects by last open time, newest first.
func RecentProjects(limit int) ([]types.ProjectRecord, error) {
	if DB == nil {
		return nil, errDBNotInitialized
	}
	var projects []types.ProjectRecord
	if err := DB.Order("opened_at desc").Limit(limit).Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func TouchProject(pid string, sceneCount int) error {
	if DB == nil {
		return errDBNotInitialized
	}
	return DB.Model(&types.ProjectRecord{}).
		Where("pid = ?", pid).
		Updates(map[string]interface{}{
			"scene_count": sceneCount,
			"opened_at":   time.Now(),
		}).Error
}

func AppendEdit(edit *types.EditRecord) error {
	if DB == nil {
		return errDBNotInitialized
	}
	return DB.Create(edit).Error
}

// ListEdits returns the newest edits of a project first.
func ListEdits(pid string, limit int) ([]types.EditRecord, error) {
	if DB == nil {
		return nil, errDBNotInitialized
	}
	var edits []types.EditRecord
	if err := DB.Where("pid = ?", pid).Order("id desc").Limit(limit).Find(&edits).Error; err != nil {
		return nil, err
	}
	return edits, nil
}

func DeleteProject(pid string) error {
	if DB == nil {
		return errDBNotInitialized
	}
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pid = ?", pid).Delete(&types.EditRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("pid = ?", pid).Delete(&types.ProjectRecord{}).Error
	})
}
