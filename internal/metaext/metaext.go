// Package metaext provides the optional extended metadata collaborator: an
// independent reading of a PDF's vital statistics through pdfcpu, used to
// cross-check what the analyzer's own parser found.
package metaext

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Extractor maps a file to qualified metadata keys. Implementations are
// optional; the analyzer runs fine without one.
type Extractor interface {
	Extract(path string) (map[string]string, error)
}

// PDFCPUExtractor reads the document through pdfcpu in relaxed validation
// mode.
type PDFCPUExtractor struct{}

// Extract opens the file with pdfcpu and reports page count, header version
// and encryption status under "pdfcpu:"-prefixed keys.
func (PDFCPUExtractor) Extract(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("pdfcpu page count: %w", err)
	}

	out := map[string]string{
		"pdfcpu:PageCount":     strconv.Itoa(ctx.PageCount),
		"pdfcpu:HeaderVersion": ctx.HeaderVersion.String(),
		"pdfcpu:Encrypted":     strconv.FormatBool(ctx.Encrypt != nil),
	}
	return out, nil
}
