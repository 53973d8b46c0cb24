// Package models はリレーショナルストアに永続化するエンティティを定義します。
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User はタスクの所有者になり得るアカウントです。
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	FirstName string    `gorm:"size:128" json:"first_name"`
	LastName  string    `gorm:"size:128" json:"last_name"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// Task は入力ファイル群、1つの処理、最大1つの結果ファイルからなる作業単位です。
type Task struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)"`
	StatusID  StatusID    `gorm:"not null;index"`
	Status    TaskStatus  `gorm:"foreignKey:StatusID"`
	ProcessID ProcessID   `gorm:"not null"`
	Process   TaskProcess `gorm:"foreignKey:ProcessID"`
	UserID    *uint       `gorm:"index"`
	ResultID  *uint       `gorm:"uniqueIndex"`
	Result    *File       `gorm:"foreignKey:ResultID;constraint:OnDelete:SET NULL"`
	Files     []File      `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate は ID が未設定の場合に UUID を割り当てます。
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsCompleted は結果が確定しているかを返します。
func (t *Task) IsCompleted() bool {
	return t.StatusID == StatusCompleted || t.StatusID == StatusDownloaded
}

// File はストレージ上の成果物または入力ファイルの登録情報です。
type File struct {
	ID          uint    `gorm:"primarykey"`
	Name        string  `gorm:"size:255;not null"`
	Extension   string  `gorm:"size:32;not null"`
	Path        string  `gorm:"size:1024;uniqueIndex;not null"`
	ContentType string  `gorm:"size:255"`
	TaskID      *string `gorm:"type:varchar(36);index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName は拡張子付きのファイル名です。
func (f *File) FullName() string {
	return f.Name + f.Extension
}

// IsUploaded はパスが割り当て済みかを返します。
func (f *File) IsUploaded() bool {
	return f.Path != ""
}

// SplitFilename は最後の "." で名前と拡張子（"." を含む）に分割します。
// どちらかが空の場合は ok=false です。
func SplitFilename(filename string) (name, ext string, ok bool) {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 || idx == len(filename)-1 {
		return "", "", false
	}
	return filename[:idx], filename[idx:], true
}
