package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalBackend はローカルファイルシステム上のベースディレクトリに保存します。
type LocalBackend struct {
	root string
}

// NewLocalBackend はベースディレクトリを作成して LocalBackend を返します。
func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("ベースディレクトリの解決に失敗しました: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("ベースディレクトリの作成に失敗しました: %w", err)
	}
	return &LocalBackend{root: abs}, nil
}

// Root はベースディレクトリの絶対パスです。
func (b *LocalBackend) Root() string {
	return b.root
}

func (b *LocalBackend) abs(location string) (string, error) {
	cleaned, err := cleanLocation(location)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(cleaned)), nil
}

// Put は r の内容を location に書き込みます。
func (b *LocalBackend) Put(ctx context.Context, location string, r io.Reader, _ string) error {
	full, err := b.abs(location)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}

	out, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("保存先ファイルの作成に失敗しました: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(full)
		return fmt.Errorf("ファイルの書き込みに失敗しました: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(full)
		return fmt.Errorf("ファイルのクローズに失敗しました: %w", err)
	}
	return nil
}

// Remove は location を削除し、削除したかどうかを返します。
func (b *LocalBackend) Remove(_ context.Context, location string) (bool, error) {
	full, err := b.abs(location)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stat は location の情報を返します。
func (b *LocalBackend) Stat(_ context.Context, location string) (Info, error) {
	full, err := b.abs(location)
	if err != nil {
		return Info{}, err
	}
	st, err := os.Stat(full)
	if err != nil {
		return Info{}, err
	}
	if st.IsDir() {
		return Info{}, fmt.Errorf("%s is a directory: %w", location, fs.ErrNotExist)
	}
	return Info{Size: st.Size(), Locator: full}, nil
}

// Open は location を読み込み用に開きます。
func (b *LocalBackend) Open(ctx context.Context, location string) (io.ReadCloser, Info, error) {
	info, err := b.Stat(ctx, location)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := os.Open(info.Locator)
	if err != nil {
		return nil, Info{}, err
	}
	return f, info, nil
}
