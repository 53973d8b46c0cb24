package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypeZIP = "application/zip"
)

// Strategy はバイト列の生成元に関わらず、保存と削除を同じ手順で扱うためのインターフェースです。
type Strategy interface {
	// Upload は destination 配下に保存し、ロケーションを返します。
	Upload(ctx context.Context, destination string) (string, error)
	// Delete はロケーションを削除し、削除したかを返します。何度呼んでも安全です。
	Delete(ctx context.Context, location string) (bool, error)
}

type remover struct {
	backend Backend
}

func (r remover) Delete(ctx context.Context, location string) (bool, error) {
	return r.backend.Remove(ctx, location)
}

// StreamStrategy はアップロードされたストリームを保存します。
type StreamStrategy struct {
	remover
	r           io.Reader
	filename    string
	contentType string
}

// FromStream はアップロードストリーム用の Strategy を返します。
func FromStream(backend Backend, r io.Reader, filename, contentType string) *StreamStrategy {
	return &StreamStrategy{remover: remover{backend}, r: r, filename: filename, contentType: contentType}
}

func (s *StreamStrategy) Upload(ctx context.Context, destination string) (string, error) {
	location := path.Join(destination, GenerateName(s.filename))
	if err := s.backend.Put(ctx, location, s.r, s.contentType); err != nil {
		return "", err
	}
	return location, nil
}

// ExistingStrategy は既に保存済みのロケーションを扱います。Upload は何も書き込みません。
type ExistingStrategy struct {
	remover
	location string
}

// FromExisting は既存ロケーション用の Strategy を返します。
func FromExisting(backend Backend, location string) *ExistingStrategy {
	return &ExistingStrategy{remover: remover{backend}, location: location}
}

func (s *ExistingStrategy) Upload(context.Context, string) (string, error) {
	if s.location == "" {
		return "", ErrInvalidLocation
	}
	return s.location, nil
}

// WriterStrategy はメモリ上の書き出し結果を保存します。
type WriterStrategy struct {
	remover
	w           io.WriterTo
	filename    string
	contentType string
}

// FromWriter はメモリ上の書き出し結果用の Strategy を返します。
func FromWriter(backend Backend, w io.WriterTo, filename, contentType string) *WriterStrategy {
	return &WriterStrategy{remover: remover{backend}, w: w, filename: filename, contentType: contentType}
}

func (s *WriterStrategy) Upload(ctx context.Context, destination string) (string, error) {
	var buf bytes.Buffer
	if _, err := s.w.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("出力のシリアライズに失敗しました: %w", err)
	}
	location := path.Join(destination, GenerateName(s.filename))
	if err := s.backend.Put(ctx, location, &buf, s.contentType); err != nil {
		return "", err
	}
	return location, nil
}

// Entry はアーカイブに格納する 1 ファイルです。
type Entry struct {
	Name string
	Body io.WriterTo
}

// BundleStrategy は複数の出力を 1 つの zip にまとめて保存します。
type BundleStrategy struct {
	remover
	entries  []Entry
	filename string
}

// FromBundle は複数出力用の Strategy を返します。
func FromBundle(backend Backend, entries []Entry, filename string) *BundleStrategy {
	return &BundleStrategy{remover: remover{backend}, entries: entries, filename: filename}
}

func (s *BundleStrategy) Upload(ctx context.Context, destination string) (string, error) {
	var buf bytes.Buffer
	if err := writeZip(&buf, s.entries); err != nil {
		return "", err
	}
	location := path.Join(destination, GenerateName(s.filename))
	if err := s.backend.Put(ctx, location, &buf, ContentTypeZIP); err != nil {
		return "", err
	}
	return location, nil
}

func writeZip(w io.Writer, entries []Entry) error {
	zipWriter := zip.NewWriter(w)
	now := time.Now()

	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:     entry.Name,
			Method:   zip.Deflate,
			Modified: now,
		}
		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("zipヘッダーの書き込みに失敗しました: %w", err)
		}
		if _, err := entry.Body.WriteTo(writer); err != nil {
			return fmt.Errorf("zipへの書き込みに失敗しました: %w", err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("zipファイルの作成に失敗しました: %w", err)
	}
	return nil
}

// GenerateName は元のファイル名を残したまま衝突しにくい保存名を返します。
func GenerateName(original string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return "file_" + token + "_" + base
}

// DetectContentType は先頭バイトから MIME タイプを判定し、読み取り位置を先頭へ戻します。
func DetectContentType(rs io.ReadSeeker) (string, error) {
	mt, err := mimetype.DetectReader(rs)
	if err != nil {
		return "", err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
