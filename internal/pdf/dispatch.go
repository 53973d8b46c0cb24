package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/logging"
)

// Dispatcher は Operation を Codec の呼び出しへ対応づけます。
type Dispatcher struct {
	codec  Codec
	logger *zap.Logger
}

// NewDispatcher は Dispatcher を作成します。
func NewDispatcher(codec Codec, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{codec: codec, logger: logging.OrNop(logger)}
}

// Dispatch は入力に対して処理を実行します。返すエラーはすべて *apperr.Error です。
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, inputs []Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Operation {
	case OperationMerge:
		return d.merge(ctx, inputs, req.Strict)
	case OperationLock:
		return d.lock(inputs, req.Password)
	case OperationUnlock:
		return d.unlock(inputs, req.Password)
	case OperationSplitRange:
		return d.splitByRange(ctx, inputs, req.Ranges, req.MergeAfter)
	case OperationSplitPages:
		return d.splitByPages(ctx, inputs, req.Pages, req.MergeAfter)
	default:
		return nil, apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("未対応の処理です: %s", req.Operation), nil)
	}
}

// single は 1 入力の処理で使う先頭の入力を返します。
func single(inputs []Input) (Input, error) {
	if len(inputs) == 0 {
		return Input{}, apperr.New(apperr.CodeNoInputFile, "処理対象のファイルが添付されていません。", nil)
	}
	in := inputs[0]
	if in.Err != nil {
		return Input{}, notAPDF(in.Name, in.Err)
	}
	return in, nil
}

// pageCount はページ数を数えます。読めない入力は NonPDFFile、パスワード付きは InvalidPDFPassword です。
func (d *Dispatcher) pageCount(in Input) (int, error) {
	n, err := d.codec.PageCount(bytes.NewReader(in.Data))
	if err != nil {
		if errors.Is(err, ErrWrongPassword) {
			return 0, apperr.New(apperr.CodeInvalidPDFPassword, fmt.Sprintf("%s はパスワードで保護されています。", in.Name), err)
		}
		return 0, notAPDF(in.Name, err)
	}
	return n, nil
}

func notAPDF(name string, err error) error {
	return apperr.New(apperr.CodeNonPDFFile, fmt.Sprintf("%s をPDFとして読み込めません。", name), err)
}

func processingFailed(message string, err error) error {
	return apperr.New(apperr.CodeProcessingFailed, message, err)
}
