package api

type CreateFolderIn struct {
	Name string `json:"name"`
}

type RenameFolderIn struct {
	Name string `json:"name"`
}

type CreateTaskIn struct {
	FolderID    *int64 `json:"folder_id,omitempty"` // nil: default folder
	Title       string `json:"title"`
	Description string `json:"description"`
}

type PatchTaskIn struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type MoveTaskIn struct {
	FolderID int64 `json:"folder_id"`
}

type StartTrackerIn struct {
	TaskID int64 `json:"task_id"`
}
