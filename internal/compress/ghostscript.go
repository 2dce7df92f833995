package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/logging"
)

// ErrToolTimeout marks a compression attempt that hit its wall-clock limit.
var ErrToolTimeout = errors.New("compression tool timed out")

// errToolUnavailable is returned when Compress is called without the
// binary installed. The pipeline checks Available first, so hitting this
// means a programming error upstream.
var errToolUnavailable = errors.New("ghostscript not available")

// Ghostscript shells out to gs for PDF recompression.
type Ghostscript struct {
	bin     string
	timeout time.Duration

	once  sync.Once
	found bool
}

// NewGhostscript creates a runner for the given binary with a per-attempt
// wall-clock timeout.
func NewGhostscript(bin string, timeout time.Duration) *Ghostscript {
	return &Ghostscript{bin: bin, timeout: timeout}
}

// Available checks once whether the binary is on PATH. Absence is not a
// hard failure: it is logged once and PDF uploads proceed uncompressed.
func (g *Ghostscript) Available() bool {
	g.once.Do(func() {
		if _, err := exec.LookPath(g.bin); err != nil {
			logging.Warn("ghostscript not found, PDF compression disabled",
				zap.String("bin", g.bin))
			return
		}
		g.found = true
	})
	return g.found
}

// Compress rewrites inPath to outPath at the given PDFSETTINGS quality,
// downsampling images, subsetting fonts and deduplicating images. A
// non-zero exit, a missing or empty output file, or the timeout all fail
// the attempt.
func (g *Ghostscript) Compress(ctx context.Context, inPath, outPath, quality string) error {
	if !g.Available() {
		return errToolUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.bin,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS="+quality,
		"-dDownsampleColorImages=true",
		"-dSubsetFonts=true",
		"-dDetectDuplicateImages=true",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile="+outPath,
		inPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		removeQuiet(outPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrToolTimeout, g.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("ghostscript %s: %v: %s", quality, err, msg)
		}
		return fmt.Errorf("ghostscript %s: %w", quality, err)
	}

	fi, err := os.Stat(outPath)
	if err != nil || fi.Size() == 0 {
		removeQuiet(outPath)
		return fmt.Errorf("ghostscript %s: produced no output", quality)
	}

	logging.Debug("ghostscript finished",
		zap.String("quality", quality),
		zap.Int64("size", fi.Size()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// tempArtifactPath returns a unique path for an intermediate artifact.
func tempArtifactPath(dir, ext string) string {
	return filepath.Join(dir, "arquivadoc-"+uuid.NewString()+ext)
}
