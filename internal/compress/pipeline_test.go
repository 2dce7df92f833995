package compress

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeTool implements PDFTool with scripted per-level outcomes.
type fakeTool struct {
	available bool
	outputs   []fakeOutput
	calls     []string // quality settings, in invocation order
	written   []string // output paths actually produced
}

type fakeOutput struct {
	size int64
	err  error
}

func (t *fakeTool) Available() bool { return t.available }

func (t *fakeTool) Compress(ctx context.Context, inPath, outPath, quality string) error {
	i := len(t.calls)
	t.calls = append(t.calls, quality)
	if i >= len(t.outputs) {
		return errors.New("unexpected extra attempt")
	}
	out := t.outputs[i]
	if out.err != nil {
		return out.err
	}
	if err := writeFileOfSize(outPath, out.size); err != nil {
		return err
	}
	t.written = append(t.written, outPath)
	return nil
}

func writeFileOfSize(path string, size int64) error {
	return os.WriteFile(path, bytes.Repeat([]byte{'x'}, int(size)), 0644)
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Threshold:    25_000,
		Budget:       100_000,
		MaxImageDim:  4096,
		ImageQuality: 80,
		TempDir:      t.TempDir(),
	}
}

func sourceFile(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.pdf")
	if err := writeFileOfSize(path, size); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestSkipBelowThreshold(t *testing.T) {
	tool := &fakeTool{available: true}
	opts := testOptions(t)
	p := New(opts, tool)

	path := sourceFile(t, opts.Threshold-1)
	res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("maybeCompress: %v", err)
	}

	if res.Compressed {
		t.Error("file below threshold must not be compressed")
	}
	if res.Path != path {
		t.Errorf("expected original path, got %s", res.Path)
	}
	if res.FinalSize != res.OriginalSize {
		t.Errorf("sizes should match, got %d vs %d", res.FinalSize, res.OriginalSize)
	}
	if len(tool.calls) != 0 {
		t.Errorf("tool must not be invoked, got %v", tool.calls)
	}
}

func TestEarlyExitWhenFirstLevelMeetsBudget(t *testing.T) {
	tool := &fakeTool{available: true, outputs: []fakeOutput{{size: 20_000}}}
	p := New(testOptions(t), tool)

	path := sourceFile(t, 30_000)
	res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("maybeCompress: %v", err)
	}

	if !res.Compressed {
		t.Fatal("expected a compressed result")
	}
	if res.FinalSize != 20_000 {
		t.Errorf("expected final size 20000, got %d", res.FinalSize)
	}
	if len(tool.calls) != 1 || tool.calls[0] != "/ebook" {
		t.Errorf("only the ebook level should run, got %v", tool.calls)
	}
}

func TestBestCandidateKeptWhenBudgetUnreachable(t *testing.T) {
	tool := &fakeTool{available: true, outputs: []fakeOutput{{size: 110_000}, {size: 105_000}}}
	p := New(testOptions(t), tool)

	path := sourceFile(t, 150_000)
	res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("maybeCompress: %v", err)
	}

	if !res.Compressed {
		t.Fatal("expected a compressed result even over budget")
	}
	if res.FinalSize != 105_000 {
		t.Errorf("expected the smaller candidate (105000), got %d", res.FinalSize)
	}
	if len(tool.calls) != 2 {
		t.Errorf("both levels should run, got %v", tool.calls)
	}

	// The losing 110k intermediate must be gone; the winner must exist.
	if _, err := os.Stat(tool.written[0]); !os.IsNotExist(err) {
		t.Errorf("discarded candidate %s should be deleted", tool.written[0])
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("winning candidate should exist: %v", err)
	}
}

func TestToolUnavailableDegradesToOriginal(t *testing.T) {
	tool := &fakeTool{available: false}
	p := New(testOptions(t), tool)

	path := sourceFile(t, 50_000)
	res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("tool absence must not be an error: %v", err)
	}
	if res.Compressed || res.Path != path {
		t.Errorf("expected untouched original, got %+v", res)
	}
}

func TestFailedAttemptFallsThroughToNextLevel(t *testing.T) {
	tool := &fakeTool{available: true, outputs: []fakeOutput{
		{err: errors.New("boom")},
		{size: 40_000},
	}}
	p := New(testOptions(t), tool)

	path := sourceFile(t, 150_000)
	res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("maybeCompress: %v", err)
	}
	if !res.Compressed || res.FinalSize != 40_000 {
		t.Errorf("expected the screen-level result, got %+v", res)
	}
	if len(tool.calls) != 2 {
		t.Errorf("expected both levels attempted, got %v", tool.calls)
	}
}

func TestNoShrinkingCandidateKeepsOriginal(t *testing.T) {
	tool := &fakeTool{available: true, outputs: []fakeOutput{{size: 160_000}, {size: 150_000}}}
	p := New(testOptions(t), tool)

	path := sourceFile(t, 150_000)
	res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("maybeCompress: %v", err)
	}

	if res.Compressed {
		t.Error("a candidate that does not shrink the file must be discarded")
	}
	if res.Path != path || res.FinalSize != res.OriginalSize {
		t.Errorf("expected untouched original, got %+v", res)
	}
	for _, w := range tool.written {
		if _, err := os.Stat(w); !os.IsNotExist(err) {
			t.Errorf("discarded output %s should be deleted", w)
		}
	}
}

func TestNearZeroOutputRejected(t *testing.T) {
	tool := &fakeTool{available: true, outputs: []fakeOutput{
		{size: 500}, // suspiciously small, likely truncated
		{size: 60_000},
	}}
	p := New(testOptions(t), tool)

	path := sourceFile(t, 150_000)
	res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("maybeCompress: %v", err)
	}
	if !res.Compressed || res.FinalSize != 60_000 {
		t.Errorf("expected the second level to win, got %+v", res)
	}
	if _, err := os.Stat(tool.written[0]); !os.IsNotExist(err) {
		t.Error("near-zero output should be deleted")
	}
}

func TestNonCompressibleMimePassesThrough(t *testing.T) {
	tool := &fakeTool{available: true}
	p := New(testOptions(t), tool)

	path := sourceFile(t, 200_000)
	res, err := p.MaybeCompress(context.Background(), path, "application/zip")
	if err != nil {
		t.Fatalf("maybeCompress: %v", err)
	}
	if res.Compressed || res.Path != path {
		t.Errorf("expected passthrough, got %+v", res)
	}
	if len(tool.calls) != 0 {
		t.Errorf("tool must not run for non-document types, got %v", tool.calls)
	}
}

func TestMissingInputFileIsAnError(t *testing.T) {
	p := New(testOptions(t), &fakeTool{available: true})
	if _, err := p.MaybeCompress(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "application/pdf"); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestResultNeverLargerThanOriginal(t *testing.T) {
	cases := [][]fakeOutput{
		{{size: 20_000}},
		{{size: 110_000}, {size: 105_000}},
		{{size: 160_000}, {size: 170_000}},
		{{err: errors.New("fail")}, {err: errors.New("fail")}},
	}
	for _, outputs := range cases {
		tool := &fakeTool{available: true, outputs: outputs}
		p := New(testOptions(t), tool)
		path := sourceFile(t, 150_000)

		res, err := p.MaybeCompress(context.Background(), path, "application/pdf")
		if err != nil {
			t.Fatalf("maybeCompress: %v", err)
		}
		if res.FinalSize > res.OriginalSize {
			t.Errorf("final size %d exceeds original %d", res.FinalSize, res.OriginalSize)
		}
	}
}
