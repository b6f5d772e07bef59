package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/b3ngr33n/docuchat-go/internal/logging"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// normalizePDFs extracts text from each uploaded PDF, one segment per page.
// Files are extracted in parallel and the results joined in input order so
// segment ordering stays deterministic. Every temp file is deleted before
// this function returns, whether extraction succeeded or not.
func (n *Normalizer) normalizePDFs(ctx context.Context, src PDFFiles) ([]rag.Segment, error) {
	if len(src.Paths) == 0 {
		return nil, nil
	}

	perFile := make([][]rag.Segment, len(src.Paths))
	errs := make([]error, len(src.Paths))

	var wg sync.WaitGroup
	for i, path := range src.Paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			perFile[i], errs[i] = extractPDF(ctx, path)
		}(i, path)
	}
	wg.Wait()

	var segments []rag.Segment
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("source: pdf %q: %w", filepath.Base(src.Paths[i]), err)
		}
		segments = append(segments, perFile[i]...)
	}
	return segments, nil
}

// extractPDF reads one PDF and emits a segment per non-empty page with page
// number and filename metadata. The file at path is removed on every exit
// path — the upload is transient and must not outlive the extraction.
func extractPDF(ctx context.Context, path string) ([]rag.Segment, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.FromContext(ctx).Warn("pdf: failed to remove temp file",
				slog.String("path", path),
				slog.Any("error", err),
			)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	total := reader.NumPage()

	var segments []rag.Segment
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: text extraction failed: %w", pageNum, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		segments = append(segments, rag.Segment{
			Text: text,
			Metadata: map[string]string{
				MetaSourceType: "pdf",
				MetaSource:     name,
				MetaPage:       strconv.Itoa(pageNum),
				MetaTotalPages: strconv.Itoa(total),
			},
		})
	}

	return segments, nil
}
