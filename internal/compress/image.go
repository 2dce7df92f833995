package compress

import (
	"image/jpeg"
	"os"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/logging"
	"github.com/arquivadoc/arquivadoc/internal/metrics"
)

// compressImage is the single-pass image path: downscale when either
// dimension exceeds the cap, re-encode as JPEG at the configured quality,
// and keep the result only if it is actually smaller than the original.
// Any decode or encode problem degrades to the original file.
func (p *Pipeline) compressImage(path string, size int64, passthrough *Result) (*Result, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		logging.Warn("image decode failed, uploading original",
			zap.String("path", path), zap.Error(err))
		return passthrough, nil
	}

	bounds := img.Bounds()
	if bounds.Dx() > p.opts.MaxImageDim || bounds.Dy() > p.opts.MaxImageDim {
		img = imaging.Fit(img, p.opts.MaxImageDim, p.opts.MaxImageDim, imaging.Lanczos)
	}

	out := p.tempPath(".jpg")
	f, err := os.Create(out)
	if err != nil {
		logging.Warn("image re-encode failed, uploading original",
			zap.String("path", path), zap.Error(err))
		return passthrough, nil
	}
	encErr := jpeg.Encode(f, img, &jpeg.Options{Quality: p.opts.ImageQuality})
	closeErr := f.Close()
	if encErr != nil || closeErr != nil {
		removeQuiet(out)
		logging.Warn("image re-encode failed, uploading original",
			zap.String("path", path), zap.Error(encErr))
		return passthrough, nil
	}

	fi, err := os.Stat(out)
	if err != nil || fi.Size() >= size || fi.Size() <= minValidOutput {
		removeQuiet(out)
		return passthrough, nil
	}

	metrics.RecordCompressionSavings(size - fi.Size())

	return &Result{
		Path:         out,
		MimeType:     "image/jpeg",
		Compressed:   true,
		OriginalSize: size,
		FinalSize:    fi.Size(),
	}, nil
}
