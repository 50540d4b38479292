package forensic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/scan"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/xref"
)

// ExtractRevisions materializes every prior revision of the file at path
// into outDir as <stem>_rev<K>.pdf. The latest revision is the file itself
// and is not written. Revisions whose cross-reference structure cannot be
// parsed are marked Corrupt but still written for manual inspection.
func (a *Analyzer) ExtractRevisions(ctx context.Context, path, outDir string) ([]Revision, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return a.extractRevisions(ctx, raw, path, outDir)
}

func (a *Analyzer) extractRevisions(ctx context.Context, raw []byte, path, outDir string) ([]Revision, error) {
	markers := scan.Scan(raw)
	ends := markers.EOFEnds()
	if len(ends) < 2 {
		return nil, nil
	}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var revisions []Revision
	for i := 1; i < len(ends); i++ {
		if err := ctx.Err(); err != nil {
			return revisions, err
		}
		end := ends[i-1]
		prefix := raw[:end]
		rev := Revision{
			Index:      i,
			ByteLength: end,
			Status:     RevisionValid,
		}
		if reason := checkRevision(prefix); reason != "" {
			rev.Status = RevisionCorrupt
			rev.Reason = reason
		}

		outPath := filepath.Join(outDir, fmt.Sprintf("%s_rev%d.pdf", stem, i))
		if err := writeRevision(ctx, outPath, prefix); err != nil {
			if ctx.Err() != nil {
				return revisions, ctx.Err()
			}
			rev.Status = RevisionCorrupt
			if rev.Reason == "" {
				rev.Reason = err.Error()
			}
		} else {
			rev.OutputPath = outPath
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

// writeRevision writes the bytes, removing the partial file when the context
// is cancelled mid-write.
func writeRevision(ctx context.Context, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// checkRevision sanity-checks that a byte prefix is a parseable revision:
// it must carry a startxref whose target yields at least one readable xref
// section. Returns a reason string when it does not.
func checkRevision(prefix []byte) string {
	markers := scan.Scan(prefix)
	entries := scan.StartXrefs(prefix, markers)
	if len(entries) == 0 {
		return "no startxref in revision"
	}
	last := entries[len(entries)-1]
	if last.XrefOffset < 0 || last.XrefOffset >= int64(len(prefix)) {
		return fmt.Sprintf("startxref offset %d outside revision", last.XrefOffset)
	}
	chain := xref.ReadChain(prefix, last.XrefOffset, 0)
	if len(chain.Sections) == 0 {
		if len(chain.Errors) > 0 {
			return chain.Errors[0]
		}
		return "no parseable xref section in revision"
	}
	return ""
}
