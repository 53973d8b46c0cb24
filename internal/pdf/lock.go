package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/models"
)

// lock は先頭の入力をユーザーパスワードで暗号化します。
func (d *Dispatcher) lock(inputs []Input, password string) (*Output, error) {
	in, err := single(inputs)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperr.New(apperr.CodePasswordRequired, "パスワードを指定してください。", nil)
	}
	if _, err := d.pageCount(in); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := d.codec.Encrypt(bytes.NewReader(in.Data), &buf, password); err != nil {
		return nil, processingFailed("PDFの暗号化に失敗しました。", err)
	}
	return pdfOutput(derivedName(in.Name, "locked"), &buf), nil
}

// unlock は先頭の入力を復号します。暗号化されていない入力はそのまま結果になります。
func (d *Dispatcher) unlock(inputs []Input, password string) (*Output, error) {
	in, err := single(inputs)
	if err != nil {
		return nil, err
	}

	encrypted, err := d.codec.IsEncrypted(bytes.NewReader(in.Data))
	if err != nil {
		return nil, notAPDF(in.Name, err)
	}
	name := derivedName(in.Name, "unlocked")
	if !encrypted {
		d.logger.Debug("unlock input is not encrypted", zap.String("file", in.Name))
		return pdfOutput(name, bytes.NewBuffer(append([]byte(nil), in.Data...))), nil
	}
	if password == "" {
		return nil, apperr.New(apperr.CodePasswordRequired, "パスワードを指定してください。", nil)
	}

	var buf bytes.Buffer
	if err := d.codec.Decrypt(bytes.NewReader(in.Data), &buf, password); err != nil {
		if errors.Is(err, ErrWrongPassword) {
			return nil, apperr.New(apperr.CodeInvalidPDFPassword, "PDFのパスワードが正しくありません。", err)
		}
		return nil, processingFailed("PDFの復号に失敗しました。", err)
	}
	return pdfOutput(name, &buf), nil
}

// derivedName は "report.pdf" から "report_locked.pdf" のような名前を作ります。
func derivedName(original, suffix string) string {
	stem, _, ok := models.SplitFilename(original)
	if !ok {
		stem = original
	}
	if stem == "" {
		stem = "document"
	}
	return fmt.Sprintf("%s_%s.pdf", stem, suffix)
}
