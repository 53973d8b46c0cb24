// Package storage はバイト列の保存先を抽象化し、生成元ごとの保存戦略を提供します。
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidLocation はベースディレクトリ外や空のロケーションを指定した場合のエラーです。
var ErrInvalidLocation = errors.New("storage: invalid location")

// Info は保存済みオブジェクトの情報です。
type Info struct {
	Size    int64
	Locator string // ローカルなら絶対パス、オブジェクトストレージなら s3:// 形式
}

// Backend は物理的なバイト列の置き場所です。ロケーションはスラッシュ区切りの相対パスです。
// 書き込み時に親ディレクトリ（プレフィックス）は自動的に作成されます。
type Backend interface {
	Put(ctx context.Context, location string, r io.Reader, contentType string) error
	// Remove は対象が存在しない場合 false, nil を返します。
	Remove(ctx context.Context, location string) (bool, error)
	// Stat は対象が存在しない場合 fs.ErrNotExist をラップしたエラーを返します。
	Stat(ctx context.Context, location string) (Info, error)
	Open(ctx context.Context, location string) (io.ReadCloser, Info, error)
}

// cleanLocation はロケーションを正規化し、ルート外へ出る指定を無効化します。
func cleanLocation(location string) (string, error) {
	location = strings.TrimSpace(strings.ReplaceAll(location, "\\", "/"))
	if location == "" {
		return "", ErrInvalidLocation
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+location), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidLocation
	}
	return cleaned, nil
}
