package files

import (
	"fmt"
	"strings"

	"github.com/yourusername/paper-tasks/internal/models"
)

// 保存先の種別です。
const (
	KindUploads = "uploads"
	KindResults = "results"
	KindFiles   = "files"
)

// Destination は所有者と種別から保存先ディレクトリを返します。
// 所有者が無い場合は temp 配下になります。
func Destination(owner *uint, kind string) string {
	if owner == nil {
		return "temp/" + kind
	}
	return fmt.Sprintf("users/%d/%s", *owner, kind)
}

// OwnedBy はファイルが user のファイル領域 (users/<id>/files) に置かれた、タスクに属さないファイルかを返します。
// タスクの入力と成果物は対象外です。
func OwnedBy(file *models.File, user *models.User) bool {
	if file == nil || user == nil || file.TaskID != nil {
		return false
	}
	return strings.HasPrefix(file.Path, Destination(&user.ID, KindFiles)+"/")
}
