package tasks

import "github.com/yourusername/paper-tasks/internal/models"

// CheckOwnership は caller がタスクを参照・操作できるかを返します。
// 所有者の無いタスクは誰でも扱えます。
func CheckOwnership(task *models.Task, caller *models.User) bool {
	if task.UserID == nil {
		return true
	}
	return caller != nil && *task.UserID == caller.ID
}
