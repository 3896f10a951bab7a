package deck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Rasterizer turns a PDF document into per-page PNG images by
// delegating to pdftoppm. Plain images pass through untouched.
type Rasterizer struct {
	bin string
	dpi int
}

func NewRasterizer(bin string, dpi int) *Rasterizer {
	return &Rasterizer{bin: bin, dpi: dpi}
}

// Rasterize renders every page of the PDF at pdfPath into outDir and
// returns the generated image paths in page order.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	prefix := filepath.Join(outDir, "page-"+strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	cmd := exec.CommandContext(ctx, r.bin,
		"-png",
		"-r", strconv.Itoa(r.dpi),
		pdfPath,
		prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", filepath.Base(pdfPath))
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

// pageNumber extracts the trailing page index pdftoppm appends to each
// output file ("prefix-1.png", "prefix-12.png").
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// mimeForPath guesses the image mime type from the file extension.
// Only formats the generation providers accept are mapped.
func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
