// Package writer materializes an assembled SAFE product as a directory
// tree on disk.
package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/burst2safe/internal/safe"
)

// Writer writes SAFE archives beneath a working directory.
type Writer struct {
	workDir string
	logger  *slog.Logger
}

// New creates a Writer rooted at workDir.
func New(workDir string) *Writer {
	return &Writer{workDir: workDir, logger: slog.Default()}
}

// WithLogger sets the logger used while writing.
func (w *Writer) WithLogger(logger *slog.Logger) *Writer {
	w.logger = logger
	return w
}

// Write lays out the archive directory and writes every constituent file.
// An archive of the same name is replaced. The archive path is returned.
func (w *Writer) Write(product *safe.Product) (string, error) {
	safePath := filepath.Join(w.workDir, product.Name)
	if err := os.RemoveAll(safePath); err != nil {
		return "", fmt.Errorf("clearing %s: %w", safePath, err)
	}
	if err := w.createLayout(safePath, product.SupportsRFI); err != nil {
		return "", err
	}

	for _, sw := range product.Swaths {
		for _, ann := range sw.Annotations() {
			relPath, err := annotationPath(sw, ann)
			if err != nil {
				return "", err
			}
			data, err := ann.Bytes()
			if err != nil {
				return "", fmt.Errorf("serializing %s: %w", relPath, err)
			}
			if err := w.writeFile(safePath, relPath, data); err != nil {
				return "", err
			}
		}
		if sw.Measurement != nil {
			data, err := sw.Measurement.Bytes()
			if err != nil {
				return "", fmt.Errorf("encoding measurement %s: %w", sw.Name, err)
			}
			if err := w.writeFile(safePath, safe.MeasurementPath(sw.Name), data); err != nil {
				return "", err
			}
		}
	}

	if err := w.writeFile(safePath, "manifest.safe", product.Manifest); err != nil {
		return "", err
	}
	if err := w.writeFile(safePath, filepath.Join("preview", "map-overlay.kml"), product.PreviewKML); err != nil {
		return "", err
	}

	w.logger.Info("wrote archive", "path", safePath, "swaths", len(product.Swaths))
	return safePath, nil
}

func (w *Writer) createLayout(safePath string, withRFI bool) error {
	dirs := []string{
		filepath.Join(safePath, "measurement"),
		filepath.Join(safePath, "annotation", "calibration"),
		filepath.Join(safePath, "preview"),
	}
	if withRFI {
		dirs = append(dirs, filepath.Join(safePath, "annotation", "rfi"))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

func (w *Writer) writeFile(safePath, relPath string, data []byte) error {
	fullPath := filepath.Join(safePath, filepath.FromSlash(relPath))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", relPath, err)
	}
	w.logger.Debug("wrote file", "path", relPath, "bytes", len(data))
	return nil
}

func annotationPath(sw *safe.SwathAssembly, ann *safe.Annotation) (string, error) {
	switch ann {
	case sw.Product.Annotation:
		return safe.ProductPath(sw.Name), nil
	case sw.Noise:
		return safe.NoisePath(sw.Name), nil
	case sw.Calibration:
		return safe.CalibrationPath(sw.Name), nil
	case sw.RFI:
		return safe.RFIPath(sw.Name), nil
	}
	return "", fmt.Errorf("annotation %s of %s has no archive location", ann.Type, sw.Name)
}
