// Package pdf はタスクに要求された処理を PDF コーデックへ振り分け、エラーを分類します。
package pdf

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrWrongPassword はパスワードが一致しない場合にコーデックが返すエラーです。
var ErrWrongPassword = errors.New("pdf: wrong password")

// Codec はバイト列レベルの PDF 操作です。
type Codec interface {
	PageCount(rs io.ReadSeeker) (int, error)
	Merge(inputs []io.ReadSeeker, w io.Writer) error
	Encrypt(rs io.ReadSeeker, w io.Writer, password string) error
	Decrypt(rs io.ReadSeeker, w io.Writer, password string) error
	IsEncrypted(rs io.ReadSeeker) (bool, error)
	// SelectPages は 1 始まりのページ番号を指定順に集めた PDF を書き出します。
	SelectPages(rs io.ReadSeeker, w io.Writer, pages []int) error
}

var disableConfigDir sync.Once

// PDFCPUCodec は pdfcpu による Codec 実装です。
type PDFCPUCodec struct{}

// NewPDFCPUCodec は PDFCPUCodec を返します。pdfcpu のユーザー設定ディレクトリは使用しません。
func NewPDFCPUCodec() *PDFCPUCodec {
	disableConfigDir.Do(pdfapi.DisableConfigDir)
	return &PDFCPUCodec{}
}

func (c *PDFCPUCodec) conf() *model.Configuration {
	return model.NewDefaultConfiguration()
}

func (c *PDFCPUCodec) PageCount(rs io.ReadSeeker) (int, error) {
	n, err := pdfapi.PageCount(rs, c.conf())
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (c *PDFCPUCodec) Merge(inputs []io.ReadSeeker, w io.Writer) error {
	return translate(pdfapi.MergeRaw(inputs, w, false, c.conf()))
}

// Encrypt はユーザーパスワードで AES-256 暗号化します。オーナーパスワードはユーザーパスワードと同じです。
func (c *PDFCPUCodec) Encrypt(rs io.ReadSeeker, w io.Writer, password string) error {
	conf := model.NewAESConfiguration(password, password, 256)
	return translate(pdfapi.Encrypt(rs, w, conf))
}

func (c *PDFCPUCodec) Decrypt(rs io.ReadSeeker, w io.Writer, password string) error {
	conf := c.conf()
	conf.UserPW = password
	conf.OwnerPW = password
	return translate(pdfapi.Decrypt(rs, w, conf))
}

func (c *PDFCPUCodec) IsEncrypted(rs io.ReadSeeker) (bool, error) {
	ctx, err := pdfapi.ReadContext(rs, c.conf())
	if err != nil {
		if isPasswordError(err) {
			return true, nil
		}
		return false, err
	}
	return ctx.Encrypt != nil, nil
}

func (c *PDFCPUCodec) SelectPages(rs io.ReadSeeker, w io.Writer, pages []int) error {
	selection := make([]string, len(pages))
	for i, p := range pages {
		selection[i] = strconv.Itoa(p)
	}
	return translate(pdfapi.Collect(rs, w, selection, c.conf()))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if isPasswordError(err) {
		return fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	return err
}

func isPasswordError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "password")
}
