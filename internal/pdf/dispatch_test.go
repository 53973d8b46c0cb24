package pdf_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/pdf"
	"github.com/yourusername/paper-tasks/internal/pdf/pdftest"
	"github.com/yourusername/paper-tasks/internal/storage"
)

func newDispatcher(t *testing.T) *pdf.Dispatcher {
	return pdf.NewDispatcher(&pdftest.Codec{}, zaptest.NewLogger(t))
}

func input(name string, data []byte) pdf.Input {
	return pdf.Input{Name: name, Data: data}
}

func pagesOf(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	labels, err := pdftest.Pages(buf.Bytes())
	require.NoError(t, err)
	return labels
}

func TestMergeRequiresTwoInputs(t *testing.T) {
	d := newDispatcher(t)
	for _, inputs := range [][]pdf.Input{nil, {input("a.pdf", pdftest.Blank(1))}} {
		_, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationMerge}, inputs)
		assert.True(t, apperr.HasCode(err, apperr.CodeInsufficientFiles), "got %v", err)
	}
}

func TestMergeSumsPages(t *testing.T) {
	d := newDispatcher(t)
	out, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationMerge}, []pdf.Input{
		input("a.pdf", pdftest.Document("a1", "a2")),
		input("b.pdf", pdftest.Document("b1", "b2", "b3")),
	})
	require.NoError(t, err)
	assert.Equal(t, pdf.ResultKindPDF, out.Kind)
	assert.Equal(t, "merged_pdf.pdf", out.Filename)
	assert.Equal(t, []string{"a1", "a2", "b1", "b2", "b3"}, pagesOf(t, out.Document))
}

func TestMergeLenientSkipsCorruptInput(t *testing.T) {
	d := newDispatcher(t)
	inputs := []pdf.Input{
		input("a.pdf", pdftest.Document("a1")),
		input("broken.pdf", []byte("not a pdf at all")),
		input("b.pdf", pdftest.Document("b1")),
	}

	out, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationMerge}, inputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1"}, pagesOf(t, out.Document))

	_, err = d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationMerge, Strict: true}, inputs)
	assert.True(t, apperr.HasCode(err, apperr.CodeNonPDFFile), "got %v", err)
}

func TestMergeLenientSkipsUnreadableInput(t *testing.T) {
	d := newDispatcher(t)
	out, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationMerge}, []pdf.Input{
		{Name: "gone.pdf", Err: errors.New("missing")},
		input("a.pdf", pdftest.Document("a1", "a2")),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, pagesOf(t, out.Document))
}

func TestMergeWithoutReadableInputs(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationMerge}, []pdf.Input{
		input("x.pdf", []byte("x")),
		input("y.pdf", []byte("y")),
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeNonPDFFile), "got %v", err)
}

func TestMergeCodecFailure(t *testing.T) {
	d := pdf.NewDispatcher(&pdftest.Codec{MergeErr: errors.New("boom")}, nil)
	_, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationMerge}, []pdf.Input{
		input("a.pdf", pdftest.Blank(1)),
		input("b.pdf", pdftest.Blank(1)),
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeProcessingFailed), "got %v", err)
}

func TestLockUnlockRoundTrip(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	original := pdftest.Document("x", "y", "z")

	locked, err := d.Dispatch(ctx, pdf.Request{Operation: pdf.OperationLock, Password: "secret"}, []pdf.Input{
		input("report.pdf", original),
		input("ignored.pdf", pdftest.Blank(9)),
	})
	require.NoError(t, err)
	assert.Equal(t, "report_locked.pdf", locked.Filename)

	_, err = d.Dispatch(ctx, pdf.Request{Operation: pdf.OperationUnlock, Password: "wrong"}, []pdf.Input{
		input("report_locked.pdf", locked.Document.Bytes()),
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidPDFPassword), "got %v", err)

	unlocked, err := d.Dispatch(ctx, pdf.Request{Operation: pdf.OperationUnlock, Password: "secret"}, []pdf.Input{
		input("report_locked.pdf", locked.Document.Bytes()),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, pagesOf(t, unlocked.Document))
}

func TestUnlockPlainInputCopiesThrough(t *testing.T) {
	d := newDispatcher(t)
	original := pdftest.Document("only")

	out, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationUnlock}, []pdf.Input{
		input("plain.pdf", original),
	})
	require.NoError(t, err)
	assert.Equal(t, original, out.Document.Bytes())
	assert.Equal(t, "plain_unlocked.pdf", out.Filename)
}

func TestSingleInputOperationsRequireFile(t *testing.T) {
	d := newDispatcher(t)
	for _, op := range []pdf.Operation{pdf.OperationLock, pdf.OperationUnlock, pdf.OperationSplitRange, pdf.OperationSplitPages} {
		_, err := d.Dispatch(context.Background(), pdf.Request{Operation: op, Password: "p", Ranges: []int{1, 1}, Pages: []int{1}}, nil)
		assert.True(t, apperr.HasCode(err, apperr.CodeNoInputFile), "%s: got %v", op, err)
	}
}

func TestLockRequiresPassword(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationLock}, []pdf.Input{input("a.pdf", pdftest.Blank(1))})
	assert.True(t, apperr.HasCode(err, apperr.CodePasswordRequired), "got %v", err)
}

func TestSplitByRangeZip(t *testing.T) {
	d := newDispatcher(t)
	out, err := d.Dispatch(context.Background(), pdf.Request{
		Operation: pdf.OperationSplitRange,
		Ranges:    []int{1, 3, 7, 10},
	}, []pdf.Input{input("ten.pdf", pdftest.Blank(10))})
	require.NoError(t, err)

	assert.Equal(t, pdf.ResultKindZIP, out.Kind)
	assert.Equal(t, "split_pdf.zip", out.Filename)
	require.Len(t, out.Parts, 2)
	assert.Equal(t, "range-1.pdf", out.Parts[0].Name)
	assert.Equal(t, []string{"p1", "p2", "p3"}, pagesOf(t, out.Parts[0].Data))
	assert.Equal(t, "range-2.pdf", out.Parts[1].Name)
	assert.Equal(t, []string{"p7", "p8", "p9", "p10"}, pagesOf(t, out.Parts[1].Data))
}

func TestSplitByRangeMergeAfter(t *testing.T) {
	d := newDispatcher(t)
	out, err := d.Dispatch(context.Background(), pdf.Request{
		Operation:  pdf.OperationSplitRange,
		Ranges:     []int{1, 3, 7, 10},
		MergeAfter: true,
	}, []pdf.Input{input("ten.pdf", pdftest.Blank(10))})
	require.NoError(t, err)
	assert.Equal(t, "split_pdf.pdf", out.Filename)
	assert.Len(t, pagesOf(t, out.Document), 7)
}

func TestSplitByRangeValidation(t *testing.T) {
	d := newDispatcher(t)
	in := []pdf.Input{input("ten.pdf", pdftest.Blank(10))}
	cases := []struct {
		ranges []int
		code   apperr.Code
	}{
		{ranges: nil, code: apperr.CodeRangesRequired},
		{ranges: []int{1, 2, 3}, code: apperr.CodeInvalidRange},
		{ranges: []int{0, 2}, code: apperr.CodeInvalidRange},
		{ranges: []int{5, 2}, code: apperr.CodeInvalidRange},
		{ranges: []int{11, 12}, code: apperr.CodeInvalidRange},
	}
	for _, tc := range cases {
		_, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationSplitRange, Ranges: tc.ranges}, in)
		assert.True(t, apperr.HasCode(err, tc.code), "%v: got %v", tc.ranges, err)
	}

	out, err := d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationSplitRange, Ranges: []int{9, 20}, MergeAfter: true}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"p9", "p10"}, pagesOf(t, out.Document))
}

func TestSplitByPagesSkipsOutOfRange(t *testing.T) {
	d := newDispatcher(t)
	in := []pdf.Input{input("ten.pdf", pdftest.Blank(10))}

	merged, err := d.Dispatch(context.Background(), pdf.Request{
		Operation:  pdf.OperationSplitPages,
		Pages:      []int{2, 5, 99},
		MergeAfter: true,
	}, in)
	require.NoError(t, err)
	assert.Equal(t, "extracted_pages.pdf", merged.Filename)
	assert.Equal(t, []string{"p2", "p5"}, pagesOf(t, merged.Document))

	zipped, err := d.Dispatch(context.Background(), pdf.Request{
		Operation: pdf.OperationSplitPages,
		Pages:     []int{2, 5, 99},
	}, in)
	require.NoError(t, err)
	require.Len(t, zipped.Parts, 2)
	assert.Equal(t, "page-1.pdf", zipped.Parts[0].Name)
	assert.Equal(t, "page-2.pdf", zipped.Parts[1].Name)
	assert.Equal(t, []string{"p5"}, pagesOf(t, zipped.Parts[1].Data))

	_, err = d.Dispatch(context.Background(), pdf.Request{Operation: pdf.OperationSplitPages, Pages: []int{42}}, in)
	assert.True(t, apperr.HasCode(err, apperr.CodeExtractPagesRequired), "got %v", err)
}

func TestSplitOutputBundlesIntoZip(t *testing.T) {
	d := newDispatcher(t)
	out, err := d.Dispatch(context.Background(), pdf.Request{
		Operation: pdf.OperationSplitRange,
		Ranges:    []int{1, 1, 2, 2},
	}, []pdf.Input{input("two.pdf", pdftest.Blank(2))})
	require.NoError(t, err)

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	entries := make([]storage.Entry, len(out.Parts))
	for i, p := range out.Parts {
		entries[i] = storage.Entry{Name: p.Name, Body: p.Data}
	}
	location, err := storage.FromBundle(backend, entries, out.Filename).Upload(context.Background(), "temp/results")
	require.NoError(t, err)

	info, err := backend.Stat(context.Background(), location)
	require.NoError(t, err)
	zr, err := zip.OpenReader(info.Locator)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 2)
}

func TestOperationProcess(t *testing.T) {
	assert.Equal(t, "pdf_split", pdf.OperationSplitPages.Process().String())
	assert.Equal(t, "pdf_merge", pdf.OperationMerge.Process().String())
	assert.Equal(t, "undefined", pdf.Operation("rotate").Process().String())
}
