// Package pdftest は決定的に振る舞うテスト用の Codec を提供します。
//
// 文書は "FAKEPDF" 行に続く "page:<label>" 行の列です。暗号化された文書は
// 先頭行が "FAKEPDF-ENC:<password>" になります。
package pdftest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yourusername/paper-tasks/internal/pdf"
)

const (
	header    = "FAKEPDF"
	encHeader = "FAKEPDF-ENC:"
)

var errNotPDF = errors.New("pdftest: not a pdf")

// Codec は pdf.Codec のテスト実装です。
type Codec struct {
	// MergeErr が設定されている場合 Merge はそのエラーを返します。
	MergeErr error
}

var _ pdf.Codec = (*Codec)(nil)

// Document は指定ラベルのページを持つ文書を返します。
func Document(labels ...string) []byte {
	var b strings.Builder
	b.WriteString(header + "\n")
	for _, l := range labels {
		b.WriteString("page:" + l + "\n")
	}
	return []byte(b.String())
}

// Blank は p1..pn のページを持つ文書を返します。
func Blank(n int) []byte {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("p%d", i+1)
	}
	return Document(labels...)
}

// Encrypted は password で保護された文書を返します。
func Encrypted(password string, labels ...string) []byte {
	body := Document(labels...)
	return append([]byte(encHeader+password+"\n"), body[len(header)+1:]...)
}

// Pages は文書のページラベルを返します。暗号化された文書はエラーです。
func Pages(data []byte) ([]string, error) {
	password, labels, err := parse(data)
	if err != nil {
		return nil, err
	}
	if password != "" {
		return nil, pdf.ErrWrongPassword
	}
	return labels, nil
}

func parse(data []byte) (string, []string, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return "", nil, errNotPDF
	}
	first := sc.Text()
	var password string
	switch {
	case first == header:
	case strings.HasPrefix(first, encHeader):
		password = strings.TrimPrefix(first, encHeader)
	default:
		return "", nil, errNotPDF
	}

	var labels []string
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "page:") {
			return "", nil, errNotPDF
		}
		labels = append(labels, strings.TrimPrefix(line, "page:"))
	}
	return password, labels, nil
}

func readPages(rs io.ReadSeeker) ([]string, error) {
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, err
	}
	return Pages(data)
}

func (c *Codec) PageCount(rs io.ReadSeeker) (int, error) {
	labels, err := readPages(rs)
	if err != nil {
		return 0, err
	}
	return len(labels), nil
}

func (c *Codec) Merge(inputs []io.ReadSeeker, w io.Writer) error {
	if c.MergeErr != nil {
		return c.MergeErr
	}
	var all []string
	for _, rs := range inputs {
		labels, err := readPages(rs)
		if err != nil {
			return err
		}
		all = append(all, labels...)
	}
	_, err := w.Write(Document(all...))
	return err
}

func (c *Codec) Encrypt(rs io.ReadSeeker, w io.Writer, password string) error {
	labels, err := readPages(rs)
	if err != nil {
		return err
	}
	_, err = w.Write(Encrypted(password, labels...))
	return err
}

func (c *Codec) Decrypt(rs io.ReadSeeker, w io.Writer, password string) error {
	data, err := io.ReadAll(rs)
	if err != nil {
		return err
	}
	stored, labels, err := parse(data)
	if err != nil {
		return err
	}
	if stored != password {
		return pdf.ErrWrongPassword
	}
	_, err = w.Write(Document(labels...))
	return err
}

func (c *Codec) IsEncrypted(rs io.ReadSeeker) (bool, error) {
	data, err := io.ReadAll(rs)
	if err != nil {
		return false, err
	}
	password, _, err := parse(data)
	if err != nil {
		return false, err
	}
	return password != "", nil
}

func (c *Codec) SelectPages(rs io.ReadSeeker, w io.Writer, pages []int) error {
	labels, err := readPages(rs)
	if err != nil {
		return err
	}
	selected := make([]string, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > len(labels) {
			return fmt.Errorf("pdftest: page %d out of range", p)
		}
		selected = append(selected, labels[p-1])
	}
	_, err = w.Write(Document(selected...))
	return err
}
