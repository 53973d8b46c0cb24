package httpapi

import (
	"time"

	"github.com/yourusername/paper-tasks/internal/models"
)

type enumView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type fileView struct {
	ID          uint      `json:"id"`
	FullName    string    `json:"full_name"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"`
	IsUploaded  bool      `json:"is_uploaded"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

type taskView struct {
	ID      string     `json:"id"`
	Created time.Time  `json:"created"`
	Updated time.Time  `json:"updated"`
	Status  enumView   `json:"status"`
	Process enumView   `json:"process"`
	OwnerID *uint      `json:"owner_id"`
	Result  *fileView  `json:"result"`
	Files   []fileView `json:"files"`
}

func presentFile(f *models.File) fileView {
	return fileView{
		ID:          f.ID,
		FullName:    f.FullName(),
		ContentType: f.ContentType,
		Path:        f.Path,
		IsUploaded:  f.IsUploaded(),
		Created:     f.CreatedAt,
		Updated:     f.UpdatedAt,
	}
}

func presentFiles(list []models.File) []fileView {
	views := make([]fileView, len(list))
	for i := range list {
		views[i] = presentFile(&list[i])
	}
	return views
}

func presentTask(t *models.Task) taskView {
	view := taskView{
		ID:      t.ID,
		Created: t.CreatedAt,
		Updated: t.UpdatedAt,
		Status:  enumView{ID: uint(t.StatusID), Name: t.StatusID.String()},
		Process: enumView{ID: uint(t.ProcessID), Name: t.ProcessID.String()},
		OwnerID: t.UserID,
		Files:   presentFiles(t.Files),
	}
	if t.Result != nil {
		result := presentFile(t.Result)
		view.Result = &result
	}
	return view
}
