package pdf

import (
	"bytes"

	"github.com/yourusername/paper-tasks/internal/models"
)

// Operation はディスパッチ対象の処理です。
type Operation string

const (
	OperationMerge      Operation = "merge"
	OperationLock       Operation = "lock"
	OperationUnlock     Operation = "unlock"
	OperationSplitRange Operation = "split-range"
	OperationSplitPages Operation = "split-pages"
)

// Process はタスクに記録する処理種別を返します。
func (o Operation) Process() models.ProcessID {
	switch o {
	case OperationMerge:
		return models.ProcessMerge
	case OperationLock:
		return models.ProcessLock
	case OperationUnlock:
		return models.ProcessUnlock
	case OperationSplitRange, OperationSplitPages:
		return models.ProcessSplit
	default:
		return models.ProcessUndefined
	}
}

// Request は処理のパラメータです。
type Request struct {
	Operation  Operation
	Strict     bool   // merge: 読めない入力で中断する
	Password   string // lock / unlock
	Ranges     []int  // split-range: [start, end] の組を平坦に並べたもの
	Pages      []int  // split-pages
	MergeAfter bool   // split: 1 つの PDF にまとめる
}

// Input はタスクに添付された入力 1 件です。Err が設定されている場合は読み込みに失敗しています。
type Input struct {
	Name string
	Data []byte
	Err  error
}

// ResultKind は生成される成果物の種別を表します。
type ResultKind string

const (
	ResultKindPDF ResultKind = "pdf"
	ResultKindZIP ResultKind = "zip"
)

// Part は zip に格納される 1 ファイルです。
type Part struct {
	Name  string
	Data  *bytes.Buffer
	Pages int
}

// Output は処理の成果です。ResultKindPDF なら Document、ResultKindZIP なら Parts が設定されます。
type Output struct {
	Filename string
	Kind     ResultKind
	Document *bytes.Buffer
	Parts    []Part
}

// ContentType は成果物の MIME タイプです。
func (o *Output) ContentType() string {
	if o.Kind == ResultKindZIP {
		return "application/zip"
	}
	return "application/pdf"
}

func pdfOutput(filename string, doc *bytes.Buffer) *Output {
	return &Output{Filename: filename, Kind: ResultKindPDF, Document: doc}
}

func zipOutput(filename string, parts []Part) *Output {
	return &Output{Filename: filename, Kind: ResultKindZIP, Parts: parts}
}
