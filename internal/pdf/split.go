package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yourusername/paper-tasks/internal/apperr"
)

const (
	splitFilename   = "split_pdf"
	extractFilename = "extracted_pages"
)

// PageRange は分割対象のページ範囲を表します（Start/Endは1-based, End>=Start）。
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (pr PageRange) pages() []int {
	pages := make([]int, 0, pr.End-pr.Start+1)
	for p := pr.Start; p <= pr.End; p++ {
		pages = append(pages, p)
	}
	return pages
}

// splitByRange は [start, end] の組ごとに PDF を生成します。
func (d *Dispatcher) splitByRange(ctx context.Context, inputs []Input, values []int, mergeAfter bool) (*Output, error) {
	in, err := single(inputs)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, apperr.New(apperr.CodeRangesRequired, "分割するページ範囲を指定してください。", nil)
	}

	pageCount, err := d.pageCount(in)
	if err != nil {
		return nil, err
	}
	ranges, err := parseRangePairs(values, pageCount)
	if err != nil {
		return nil, err
	}

	if mergeAfter {
		var pages []int
		for _, pr := range ranges {
			pages = append(pages, pr.pages()...)
		}
		buf, err := d.collect(in, pages)
		if err != nil {
			return nil, err
		}
		return pdfOutput(splitFilename+".pdf", buf), nil
	}

	parts := make([]Part, 0, len(ranges))
	for i, pr := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf, err := d.collect(in, pr.pages())
		if err != nil {
			return nil, err
		}
		parts = append(parts, Part{
			Name:  fmt.Sprintf("range-%d.pdf", i+1),
			Data:  buf,
			Pages: pr.End - pr.Start + 1,
		})
	}
	return zipOutput(splitFilename+".zip", parts), nil
}

// splitByPages は指定ページを取り出します。範囲外のページ番号は無視します。
func (d *Dispatcher) splitByPages(ctx context.Context, inputs []Input, values []int, mergeAfter bool) (*Output, error) {
	in, err := single(inputs)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, apperr.New(apperr.CodeExtractPagesRequired, "抽出するページを指定してください。", nil)
	}

	pageCount, err := d.pageCount(in)
	if err != nil {
		return nil, err
	}
	pages := filterPages(values, pageCount)
	if len(pages) == 0 {
		return nil, apperr.New(apperr.CodeExtractPagesRequired, "指定されたページがPDFに存在しません。", nil)
	}

	if mergeAfter {
		buf, err := d.collect(in, pages)
		if err != nil {
			return nil, err
		}
		return pdfOutput(extractFilename+".pdf", buf), nil
	}

	parts := make([]Part, 0, len(pages))
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf, err := d.collect(in, []int{p})
		if err != nil {
			return nil, err
		}
		parts = append(parts, Part{
			Name:  fmt.Sprintf("page-%d.pdf", i+1),
			Data:  buf,
			Pages: 1,
		})
	}
	return zipOutput(extractFilename+".zip", parts), nil
}

func (d *Dispatcher) collect(in Input, pages []int) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := d.codec.SelectPages(bytes.NewReader(in.Data), &buf, pages); err != nil {
		return nil, processingFailed(fmt.Sprintf("%s からページを取り出せませんでした。", in.Name), err)
	}
	return &buf, nil
}

// parseRangePairs は平坦な数列を [start, end] の組として解釈します。
// end がページ数を超える場合は最終ページに丸めます。
func parseRangePairs(values []int, pageCount int) ([]PageRange, error) {
	if len(values)%2 != 0 {
		return nil, apperr.New(apperr.CodeInvalidRange, "ページ範囲は開始と終了の組で指定してください。", nil)
	}

	ranges := make([]PageRange, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		start, end := values[i], values[i+1]
		if start < 1 || end < start {
			return nil, apperr.New(apperr.CodeInvalidRange, fmt.Sprintf("範囲指定が正しくありません: %d-%d", start, end), nil)
		}
		if start > pageCount {
			return nil, apperr.New(apperr.CodeInvalidRange, fmt.Sprintf("範囲 %d-%d がページ数 %d を超えています。", start, end, pageCount), nil)
		}
		if end > pageCount {
			end = pageCount
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	return ranges, nil
}

func filterPages(values []int, pageCount int) []int {
	pages := make([]int, 0, len(values))
	for _, p := range values {
		if p >= 1 && p <= pageCount {
			pages = append(pages, p)
		}
	}
	return pages
}
