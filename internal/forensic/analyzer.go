package forensic

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rasmus-Riis/PDFRecon/internal/config"
	"github.com/Rasmus-Riis/PDFRecon/internal/metaext"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/content"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/document"
)

// Analyzer runs the full forensic pipeline over single files. One Analyzer
// is safe for concurrent use: each scan is self-contained and the only
// shared state is the read-only config and the mutex-guarded report cache.
type Analyzer struct {
	cfg      *config.Config
	renderer PageRenderer
	extMeta  metaext.Extractor
	now      func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]*FileReport
}

type cacheKey struct {
	path  string
	mtime int64
	size  int64
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRenderer supplies the external page renderer enabling the visual
// identity check on extracted revisions.
func WithRenderer(r PageRenderer) Option {
	return func(a *Analyzer) { a.renderer = r }
}

// WithMetadataExtractor supplies the optional extended metadata collaborator.
func WithMetadataExtractor(e metaext.Extractor) Option {
	return func(a *Analyzer) { a.extMeta = e }
}

// WithClock overrides the scan clock; tests use it to pin future-date
// detection.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer returns an Analyzer using cfg, which must already be
// validated.
func NewAnalyzer(cfg *config.Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:   cfg,
		now:   time.Now,
		cache: make(map[cacheKey]*FileReport),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Scan runs the full pipeline on one file and returns its report. Fatal
// conditions (unreadable file, no PDF header) yield a Green report carrying
// a single error; only context cancellation returns a non-nil error.
func (a *Analyzer) Scan(ctx context.Context, path string) (*FileReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fatalReport(path, 0, fmt.Sprintf("cannot stat file: %v", err)), nil
	}
	key := cacheKey{path: path, mtime: info.ModTime().UnixNano(), size: info.Size()}
	if cached := a.cachedReport(key); cached != nil {
		return cached, nil
	}

	if info.Size() > a.cfg.MaxFileSize {
		return fatalReport(path, info.Size(),
			fmt.Sprintf("file size %d exceeds limit %d", info.Size(), a.cfg.MaxFileSize)), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fatalReport(path, info.Size(), fmt.Sprintf("cannot read file: %v", err)), nil
	}

	report, err := a.scanBytes(ctx, raw, path)
	if err != nil {
		return nil, err
	}
	a.storeReport(key, report)
	return report, nil
}

// scanBytes is the pipeline proper. Cancellation is polled between stages;
// a cancelled scan discards the in-progress report.
func (a *Analyzer) scanBytes(ctx context.Context, raw []byte, path string) (*FileReport, error) {
	report := &FileReport{
		Path: path,
		Size: int64(len(raw)),
		MD5:  md5Hex(raw),
	}

	// fatal-for-file: not a PDF at all
	probe := raw
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	if !bytes.Contains(probe, []byte("%PDF-")) {
		report.Classification = ClassificationGreen
		report.Errors = append(report.Errors, "no %PDF- header within the first 1024 bytes")
		return report, nil
	}

	// C1-C4: byte scan, object graph, xref chain, metadata
	doc := document.Parse(raw, document.Options{MaxStreamSize: a.cfg.MaxStreamSize})
	report.Errors = append(report.Errors, doc.Errors...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// C5: per-page content stream statistics
	pages := a.inspectPages(doc, report)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// optional collaborator: independent metadata reading
	if a.extMeta != nil {
		if ext, err := a.extMeta.Extract(path); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("extended metadata: %v", err))
		} else {
			a.crossCheckExternal(doc, ext, report)
		}
	}

	// C6: indicator evaluators
	ectx := &Context{Doc: doc, Pages: pages, Cfg: a.cfg, Now: a.now}
	report.Findings = a.runEvaluators(ectx, report)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// C7: revision extraction
	if len(doc.EOFOffsets) >= 2 {
		outDir := filepath.Join(filepath.Dir(path), a.cfg.RevisionOutputDir)
		revisions, err := a.extractRevisions(ctx, raw, path, outDir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Errors = append(report.Errors, fmt.Sprintf("revision extraction: %v", err))
		}
		report.Revisions = revisions
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// TouchUp evidence: text difference against the newest revision
	a.attachTouchUpDiff(report, raw)

	// C8: visual identity of each extractable revision
	a.checkVisualIdentity(ctx, report, raw)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// C9: classification and timeline
	report.Classification = Classify(report.Findings, report.Revisions)
	report.Timeline = BuildTimeline(doc)
	return report, nil
}

func (a *Analyzer) inspectPages(doc *document.Document, report *FileReport) []*content.Stats {
	var pages []*content.Stats
	for i, pageID := range doc.Pages {
		data, errs := doc.PageContent(pageID)
		for _, e := range errs {
			report.Errors = append(report.Errors, fmt.Sprintf("page %d: %s", i+1, e))
		}
		if len(data) == 0 {
			continue
		}
		pages = append(pages, content.Inspect(data, i+1))
	}
	return pages
}

// runEvaluators executes the registry in order. A panicking evaluator is
// recorded as an evaluator error and the rest continue.
func (a *Analyzer) runEvaluators(ectx *Context, report *FileReport) []Finding {
	var findings []Finding
	for _, ev := range Registry() {
		results, err := runEvaluator(ev, ectx)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("evaluator %s: %v", ev.Kind, err))
			continue
		}
		findings = append(findings, results...)
	}
	return findings
}

func runEvaluator(ev Evaluator, ectx *Context) (results []Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ev.Eval(ectx), nil
}

// crossCheckExternal compares the collaborator's reading with the parsed
// document and records disagreements as scan errors for the reviewer.
func (a *Analyzer) crossCheckExternal(doc *document.Document, ext map[string]string, report *FileReport) {
	if v, ok := ext["pdfcpu:PageCount"]; ok {
		if own := fmt.Sprintf("%d", len(doc.Pages)); own != v && len(doc.Pages) > 0 {
			report.Errors = append(report.Errors,
				fmt.Sprintf("page count disagreement: parser found %s, pdfcpu reports %s", own, v))
		}
	}
}

// attachTouchUpDiff enriches a TouchUpTextEdit finding with the extracted
// text difference between the newest valid revision and the final file.
func (a *Analyzer) attachTouchUpDiff(report *FileReport, raw []byte) {
	var touchUp *Finding
	for i := range report.Findings {
		if report.Findings[i].Kind == KindTouchUpTextEdit {
			touchUp = &report.Findings[i]
			break
		}
	}
	if touchUp == nil {
		return
	}
	newest := newestValidRevision(report.Revisions)
	if newest == nil || newest.OutputPath == "" {
		return
	}
	revBytes, err := os.ReadFile(newest.OutputPath)
	if err != nil {
		return
	}
	touchUpTextDiff(touchUp, revBytes, raw)
}

func newestValidRevision(revisions []Revision) *Revision {
	for i := len(revisions) - 1; i >= 0; i-- {
		if revisions[i].Status != RevisionCorrupt {
			return &revisions[i]
		}
	}
	return nil
}

// checkVisualIdentity marks non-corrupt revisions that render identically to
// the final file.
func (a *Analyzer) checkVisualIdentity(ctx context.Context, report *FileReport, raw []byte) {
	if a.renderer == nil {
		return
	}
	for i := range report.Revisions {
		rev := &report.Revisions[i]
		if rev.Status == RevisionCorrupt || rev.OutputPath == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		revBytes, err := os.ReadFile(rev.OutputPath)
		if err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("visual check revision %d: %v", rev.Index, err))
			continue
		}
		identical, err := VisuallyIdentical(a.renderer, raw, revBytes,
			a.cfg.VisualCheckPages, a.cfg.VisualCheckDPI)
		if err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("visual check revision %d: %v", rev.Index, err))
			continue
		}
		if identical {
			rev.Status = RevisionVisuallyIdentical
		}
	}
}

func (a *Analyzer) cachedReport(key cacheKey) *FileReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache[key]
}

func (a *Analyzer) storeReport(key cacheKey, report *FileReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[key] = report
}

func fatalReport(path string, size int64, reason string) *FileReport {
	return &FileReport{
		Path:           path,
		Size:           size,
		Classification: ClassificationGreen,
		Errors:         []string{reason},
	}
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
