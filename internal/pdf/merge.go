package pdf

import (
	"bytes"
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/apperr"
)

const mergedFilename = "merged_pdf.pdf"

// merge は入力を添付順に 1 つの PDF へ結合します。
// strict でない場合、読み込めない入力は読み飛ばします。
func (d *Dispatcher) merge(ctx context.Context, inputs []Input, strict bool) (*Output, error) {
	if len(inputs) < 2 {
		return nil, apperr.New(apperr.CodeInsufficientFiles, "結合には2つ以上のファイルが必要です。", nil)
	}

	readable := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		readErr := in.Err
		if readErr == nil {
			_, readErr = d.codec.PageCount(bytes.NewReader(in.Data))
		}
		if readErr != nil {
			if strict {
				return nil, notAPDF(in.Name, readErr)
			}
			d.logger.Info("skipping unreadable merge input",
				zap.String("file", in.Name),
				zap.Error(readErr),
			)
			continue
		}
		readable = append(readable, in)
	}

	switch len(readable) {
	case 0:
		return nil, apperr.New(apperr.CodeNonPDFFile, "読み込めるPDFがありません。", nil)
	case 1:
		return pdfOutput(mergedFilename, bytes.NewBuffer(append([]byte(nil), readable[0].Data...))), nil
	}

	readers := make([]io.ReadSeeker, len(readable))
	for i, in := range readable {
		readers[i] = bytes.NewReader(in.Data)
	}

	var buf bytes.Buffer
	if err := d.codec.Merge(readers, &buf); err != nil {
		return nil, processingFailed("PDFの結合に失敗しました。", err)
	}
	return pdfOutput(mergedFilename, &buf), nil
}
