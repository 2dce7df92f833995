// Package compress decides whether a file must be shrunk before upload so
// the remote store's preview renderer can handle it, and runs the bounded
// progressive compression search when it must.
package compress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/logging"
	"github.com/arquivadoc/arquivadoc/internal/metrics"
)

// minValidOutput guards against corrupt or truncated tool output: anything
// at or below this size is assumed broken and discarded.
const minValidOutput = 1024

// Options holds pipeline tuning values. Thresholds are tied to the remote
// store's preview renderer and come from configuration.
type Options struct {
	Threshold    int64  // files at or below this size skip compression
	Budget       int64  // stop the search once a candidate fits this size
	MaxImageDim  int    // images above this dimension are downscaled
	ImageQuality int    // JPEG re-encode quality
	TempDir      string // where intermediate artifacts are written
}

// Result describes the pipeline outcome. When Compressed is false, Path is
// the untouched input path. When true, Path is a temporary artifact the
// caller must delete after use.
type Result struct {
	Path         string
	MimeType     string
	Compressed   bool
	OriginalSize int64
	FinalSize    int64
}

// PDFTool abstracts the external document compressor so the search logic
// can be exercised without spawning subprocesses.
type PDFTool interface {
	// Available reports whether the tool is installed. Must be cheap
	// after the first call.
	Available() bool

	// Compress writes a compressed copy of inPath to outPath at the
	// given quality setting, enforcing its own wall-clock timeout.
	Compress(ctx context.Context, inPath, outPath, quality string) error
}

// QualityLevel is one preset of the external tool, most faithful first.
type QualityLevel struct {
	Name    string
	Setting string
}

// DefaultQualityLevels orders presets from least to most aggressive:
// ebook (~150dpi) preserves readability, screen (~72dpi) is the fallback.
var DefaultQualityLevels = []QualityLevel{
	{Name: "ebook", Setting: "/ebook"},
	{Name: "screen", Setting: "/screen"},
}

// Pipeline decides on and performs pre-upload compression.
type Pipeline struct {
	opts   Options
	tool   PDFTool
	levels []QualityLevel
}

// New creates a pipeline with the default quality ladder.
func New(opts Options, tool PDFTool) *Pipeline {
	return &Pipeline{opts: opts, tool: tool, levels: DefaultQualityLevels}
}

// MaybeCompress returns the file to upload for the given input. Files at
// or below the threshold, non-compressible media types, and every failure
// of the external tool degrade to the original file unchanged.
func (p *Pipeline) MaybeCompress(ctx context.Context, path, mimeType string) (*Result, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := fi.Size()

	passthrough := &Result{
		Path:         path,
		MimeType:     mimeType,
		Compressed:   false,
		OriginalSize: size,
		FinalSize:    size,
	}

	if size <= p.opts.Threshold {
		return passthrough, nil
	}

	switch {
	case isPDF(mimeType):
		return p.compressPDF(ctx, path, mimeType, size, passthrough)
	case isImage(mimeType):
		return p.compressImage(path, size, passthrough)
	default:
		return passthrough, nil
	}
}

func (p *Pipeline) compressPDF(ctx context.Context, path, mimeType string, size int64, passthrough *Result) (*Result, error) {
	if !p.tool.Available() {
		return passthrough, nil
	}

	attempts := make([]attempt, 0, len(p.levels))
	for _, level := range p.levels {
		level := level
		out := p.tempPath(".pdf")
		attempts = append(attempts, attempt{
			name: level.Name,
			run: func(ctx context.Context) (string, int64, error) {
				if err := p.tool.Compress(ctx, path, out, level.Setting); err != nil {
					return "", 0, err
				}
				fi, err := os.Stat(out)
				if err != nil {
					return "", 0, fmt.Errorf("stat output: %w", err)
				}
				return out, fi.Size(), nil
			},
		})
	}

	best := searchBest(ctx, attempts, size, p.opts.Budget, minValidOutput)
	if best == nil {
		logging.Warn("no compression attempt shrank the file, uploading original",
			zap.String("path", path), zap.Int64("size", size))
		return passthrough, nil
	}

	if best.size > p.opts.Budget {
		logging.Warn("compressed file still over preview budget",
			zap.String("path", path),
			zap.Int64("size", best.size),
			zap.Int64("budget", p.opts.Budget))
	}
	metrics.RecordCompressionSavings(size - best.size)

	return &Result{
		Path:         best.path,
		MimeType:     mimeType,
		Compressed:   true,
		OriginalSize: size,
		FinalSize:    best.size,
	}, nil
}

type attempt struct {
	name string
	run  func(ctx context.Context) (path string, size int64, err error)
}

type candidate struct {
	path string
	size int64
}

// searchBest runs attempts in order and keeps the smallest result that is
// smaller than originalSize and larger than floor. It stops early once the
// best candidate fits the budget. Losing candidates are deleted on the
// spot; attempt failures are absorbed and the search continues. Returns
// nil when no attempt produced a valid smaller file.
func searchBest(ctx context.Context, attempts []attempt, originalSize, budget, floor int64) *candidate {
	var best *candidate

	for _, a := range attempts {
		out, size, err := a.run(ctx)
		if err != nil {
			outcome := "failed"
			if errors.Is(err, ErrToolTimeout) || errors.Is(err, context.DeadlineExceeded) {
				outcome = "timeout"
			}
			metrics.RecordCompressionAttempt(a.name, outcome)
			logging.Warn("compression attempt failed",
				zap.String("level", a.name), zap.Error(err))
			continue
		}

		valid := size > floor && size < originalSize && (best == nil || size < best.size)
		if !valid {
			metrics.RecordCompressionAttempt(a.name, "discarded")
			removeQuiet(out)
			continue
		}

		if best != nil {
			removeQuiet(best.path)
		}
		best = &candidate{path: out, size: size}
		metrics.RecordCompressionAttempt(a.name, "accepted")

		if best.size <= budget {
			break
		}
	}

	return best
}

func (p *Pipeline) tempPath(ext string) string {
	return tempArtifactPath(p.opts.TempDir, ext)
}

func isPDF(mimeType string) bool {
	return mimeType == "application/pdf" || mimeType == "application/x-pdf"
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// removeQuiet deletes a discarded artifact. Failure to clean up must never
// mask the primary result, so it is only logged.
func removeQuiet(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove temporary artifact",
			zap.String("path", path), zap.Error(err))
	}
}
