package types

import "time"

// ProjectRecord indexes a project that has been opened on this machine.
type ProjectRecord struct {
	Id          uint      `gorm:"primaryKey" json:"-"`
	Pid         string    `gorm:"uniqueIndex;size:128" json:"pid"`
	Title       string    `json:"title"`
	Language    string    `json:"language"`
	Channel     string    `json:"channel"`
	ProjectPath string    `json:"project_path"`
	SceneCount  int       `json:"scene_count"`
	OpenedAt    time.Time `gorm:"index" json:"opened_at"`
	CreateTime  time.Time `gorm:"autoCreateTime" json:"create_time"`
}

type EditOp string

const (
	EditOpMerge     EditOp = "merge"
	EditOpSplit     EditOp = "split"
	EditOpSmart     EditOp = "smart_split"
	EditOpShift     EditOp = "shift"
	EditOpSwap      EditOp = "swap"
	EditOpClone     EditOp = "clone"
	EditOpReplace   EditOp = "replace"
	EditOpSplice    EditOp = "splice"
	EditOpUpdate    EditOp = "update"
	EditOpReload    EditOp = "reload"
	EditOpBootstrap EditOp = "bootstrap"
)

// EditRecord is one persisted structural change to a project's scenes.
type EditRecord struct {
	Id         uint      `gorm:"primaryKey" json:"id"`
	Pid        string    `gorm:"index;size:128" json:"pid"`
	Op         EditOp    `gorm:"size:32" json:"op"`
	Detail     string    `json:"detail"`
	SceneCount int       `json:"scene_count"`
	CreateTime time.Time `gorm:"autoCreateTime;index" json:"create_time"`
}

// TitleChoices is the content of titles_choices.json.
type TitleChoices struct {
	Titles []string `json:"titles"`
	Tags   []string `json:"tags"`
}
