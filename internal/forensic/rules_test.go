package forensic

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rasmus-Riis/PDFRecon/internal/config"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/content"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/document"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/pdftest"
)

func evalContext(t *testing.T, data []byte) *Context {
	t.Helper()
	doc := document.Parse(data, document.Options{})
	ectx := &Context{
		Doc: doc,
		Cfg: config.Default(),
		Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	for i, pageID := range doc.Pages {
		if stream, _ := doc.PageContent(pageID); len(stream) > 0 {
			ectx.Pages = append(ectx.Pages, content.Inspect(stream, i+1))
		}
	}
	return ectx
}

func evaluateAll(t *testing.T, data []byte) []Finding {
	t.Helper()
	ectx := evalContext(t, data)
	var findings []Finding
	for _, ev := range Registry() {
		findings = append(findings, ev.Eval(ectx)...)
	}
	return findings
}

func kinds(findings []Finding) []Kind {
	out := make([]Kind, len(findings))
	for i, f := range findings {
		out[i] = f.Kind
	}
	return out
}

func findByKind(findings []Finding, kind Kind) *Finding {
	for i := range findings {
		if findings[i].Kind == kind {
			return &findings[i]
		}
	}
	return nil
}

func TestCleanDocumentHasNoFindings(t *testing.T) {
	findings := evaluateAll(t, pdftest.SimpleDoc(nil))
	assert.Empty(t, findings, "clean single-save document must not trigger indicators: %v", kinds(findings))
}

func TestHasRevisionsAndMultipleStartxref(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.FinishRevision(1, "")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 /Touched true >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	rev := findByKind(findings, KindHasRevisions)
	require.NotNil(t, rev)
	assert.Equal(t, SeverityHigh, rev.Severity)
	assert.Equal(t, "2", rev.EvidenceValue("eof_count"))

	sx := findByKind(findings, KindMultipleStartxref)
	require.NotNil(t, sx)
	assert.Equal(t, SeverityMedium, sx.Severity)
}

func TestTouchUpTextEditAndPieceInfo(t *testing.T) {
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddObject(6, "<< /PieceInfo << /AdobePhotoshop << /Private << /TouchUp_TextEdit true >> >> >> >>")
	})
	findings := evaluateAll(t, data)

	require.NotNil(t, findByKind(findings, KindTouchUpTextEdit))
	require.NotNil(t, findByKind(findings, KindHasPieceInfo))
	assert.Equal(t, ClassificationRed, Classify(findings, nil))
}

func TestMissingObjects(t *testing.T) {
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddObject(6, "<< /Dangling 7 0 R >>")
	})
	findings := evaluateAll(t, data)

	missing := findByKind(findings, KindMissingObjects)
	require.NotNil(t, missing)
	assert.Equal(t, SeverityHigh, missing.Severity)
	assert.Equal(t, "(7,0)", missing.EvidenceValue("missing"))
}

func TestJavaScriptAutoExecuteSuppressesContains(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /OpenAction 5 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(5, "<< /S /JavaScript /JS (app.alert\\(1\\)) >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	require.NotNil(t, findByKind(findings, KindJavaScriptAutoExecute))
	assert.Nil(t, findByKind(findings, KindContainsJavaScript),
		"auto-exec action must not double-report as ContainsJavaScript")
}

func TestContainsJavaScriptWithoutAutoExec(t *testing.T) {
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddObject(6, "<< /S /JavaScript /JS (console.log\\(1\\)) >>")
	})
	findings := evaluateAll(t, data)

	assert.Nil(t, findByKind(findings, KindJavaScriptAutoExecute))
	js := findByKind(findings, KindContainsJavaScript)
	require.NotNil(t, js)
	assert.Equal(t, SeverityMedium, js.Severity)
}

func TestMultipleFontSubsets(t *testing.T) {
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddObject(6, "<< /Type /Font /BaseFont /ABCDEF+Calibri >>")
		b.AddObject(7, "<< /Type /Font /BaseFont /GHIJKL+Calibri-Bold >>")
	})
	findings := evaluateAll(t, data)

	f := findByKind(findings, KindMultipleFontSubsets)
	require.NotNil(t, f)
	assert.Equal(t, "Calibri", f.EvidenceValue("base_font"))
}

func TestSingleSubsetNotFlagged(t *testing.T) {
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddObject(6, "<< /Type /Font /BaseFont /ABCDEF+Calibri >>")
	})
	assert.Nil(t, findByKind(evaluateAll(t, data), KindMultipleFontSubsets))
}

func TestObjectsWithGenGreaterZero(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObjectGen(6, 1, "(reused)")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindObjectsWithGenGreaterZero)
	require.NotNil(t, f)
	assert.Equal(t, "(6,1)", f.EvidenceValue("object"))
}

func TestLinearizedAndUpdated(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(9, "<< /Linearized 1 /L 9999 >>")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.FinishRevision(1, "")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 /V 2 >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindLinearizedAndUpdated))
}

func TestWhiteRectangleOverlay(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	content := "q 1 1 1 rg 100 200 50 30 re f Q q 1 1 1 rg 100 300 50 30 re f Q"
	b.AddStreamObject(4, "", []byte(content))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindWhiteRectangleOverlay)
	require.NotNil(t, f)
	assert.Equal(t, "2", f.EvidenceValue("white_rects"))
	assert.Equal(t, ClassificationYellow, Classify(findings, nil))
}

func TestSuspiciousTextPositioning(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("BT ")
	for i := 0; i < 45; i++ {
		fmt.Fprintf(&sb, "%d %d Td ", i, i)
	}
	sb.WriteString("ET")

	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte(sb.String()))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindSuspiciousTextPositioning))
}

func TestInvisibleTextCaptured(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte("BT 3 Tr (covert) Tj ET"))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindInvisibleText)
	require.NotNil(t, f)
	assert.Equal(t, "covert", f.EvidenceValue("text_1"))
}

func TestHasAnnotationsAndRedactions(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [5 0 R] >>")
	b.AddObject(5, "<< /Type /Annot /Subtype /Redact /Rect [0 0 10 10] >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	assert.NotNil(t, findByKind(findings, KindHasAnnotations))
	assert.NotNil(t, findByKind(findings, KindHasRedactions))
}

func TestAcroFormNeedAppearancesAndFieldCount(t *testing.T) {
	var fields []string
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 5 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	for i := 0; i < 55; i++ {
		num := 10 + i
		b.AddObject(num, fmt.Sprintf("<< /FT /Tx /T (field%d) >>", i))
		fields = append(fields, fmt.Sprintf("%d 0 R", num))
	}
	b.AddObject(5, "<< /NeedAppearances true /Fields ["+strings.Join(fields, " ")+"] >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	assert.NotNil(t, findByKind(findings, KindAcroFormNeedAppearances))
	f := findByKind(findings, KindExcessiveFormFields)
	require.NotNil(t, f)
	assert.Equal(t, "55", f.EvidenceValue("count"))
}

func TestSignatureByteRangeCoverage(t *testing.T) {
	t.Run("CoveringSignature", func(t *testing.T) {
		var data []byte
		b := pdftest.NewBuilder("1.4")
		b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
		b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
		// the second range ends at 99999, past the end of this small file, so
		// the signature covers everything up to the final %%EOF
		b.AddObject(5, "<< /Type /Sig /M (D:20230101120000Z) /ByteRange [0 99999 99999 0] >>")
		b.FinishRevision(1, "")
		data = b.Bytes()

		findings := evaluateAll(t, data)
		f := findByKind(findings, KindHasDigitalSignature)
		require.NotNil(t, f)
		assert.Equal(t, "true", f.EvidenceValue("covers_file"))
	})

	t.Run("NonCoveringSignature", func(t *testing.T) {
		b := pdftest.NewBuilder("1.4")
		b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
		b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
		b.AddObject(5, "<< /Type /Sig /ByteRange [0 100 200 50] >>")
		b.FinishRevision(1, "")
		findings := evaluateAll(t, b.Bytes())

		f := findByKind(findings, KindHasDigitalSignature)
		require.NotNil(t, f)
		assert.Equal(t, "false", f.EvidenceValue("covers_file"))
		assert.Contains(t, f.Summary, "does not cover")
	})
}

func TestDateInconsistency(t *testing.T) {
	xmp := `<?xpacket begin=""?><x:xmpmeta xmlns:x="adobe:ns:meta/">
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:xmp="http://ns.adobe.com/xap/1.0/">
<xmp:CreateDate>2023-04-05T15:00:00Z</xmp:CreateDate>
</rdf:Description></rdf:RDF></x:xmpmeta><?xpacket end="w"?>`

	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /Metadata 6 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(5, "<< /CreationDate (D:20230405120000Z) >>")
	b.AddStreamObject(6, "/Type /Metadata /Subtype /XML", []byte(xmp))
	b.FinishRevision(1, "/Info 5 0 R")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindDateInconsistency)
	require.NotNil(t, f)
	assert.Contains(t, f.Summary, "CreateDate")
}

func TestDateWithinToleranceNotFlagged(t *testing.T) {
	xmp := `<x:xmpmeta xmlns:x="adobe:ns:meta/">
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:xmp="http://ns.adobe.com/xap/1.0/">
<xmp:CreateDate>2023-04-05T12:00:00Z</xmp:CreateDate>
</rdf:Description></rdf:RDF></x:xmpmeta>`

	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /Metadata 6 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(5, "<< /CreationDate (D:20230405120000Z) >>")
	b.AddStreamObject(6, "/Type /Metadata", []byte(xmp))
	b.FinishRevision(1, "/Info 5 0 R")
	assert.Nil(t, findByKind(evaluateAll(t, b.Bytes()), KindDateInconsistency))
}

func TestMetadataVersionMismatchXrefStreamFeature(t *testing.T) {
	// header declares 1.4 but the file carries a /Type /XRef stream object
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddStreamObject(6, "/Type /XRef /Size 1 /W [1 1 1]", []byte{1, 0, 0})
	})
	findings := evaluateAll(t, data)

	f := findByKind(findings, KindMetadataVersionMismatch)
	require.NotNil(t, f)
	assert.Equal(t, "xref-stream", f.EvidenceValue("feature"))
}

func TestMetadataVersionMismatchOldProducer(t *testing.T) {
	b := pdftest.NewBuilder("1.7")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(5, "<< /Producer (Acrobat Distiller 4 for Windows) >>")
	b.FinishRevision(1, "/Info 5 0 R")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindMetadataVersionMismatch))
}

func TestOrphanedObjects(t *testing.T) {
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		for i := 0; i < 12; i++ {
			b.AddObject(20+i, "(unreferenced)")
		}
	})
	findings := evaluateAll(t, data)
	f := findByKind(findings, KindOrphanedObjects)
	require.NotNil(t, f)
}

func TestLargeObjectNumberGaps(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(100, "(far away)")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindLargeObjectNumberGaps))
}

func TestDuplicateImages(t *testing.T) {
	pixels := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddStreamObject(6, "/Subtype /Image /Width 1 /Height 1", pixels)
		b.AddStreamObject(7, "/Subtype /Image /Width 1 /Height 1", pixels)
	})
	findings := evaluateAll(t, data)
	f := findByKind(findings, KindDuplicateImagesDifferentXrefs)
	require.NotNil(t, f)
}

func TestImagesWithExif(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x10}, []byte("Exif\x00\x00rest")...)
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddStreamObject(6, "/Subtype /Image /Filter /DCTDecode", jpeg)
	})
	findings := evaluateAll(t, data)
	assert.NotNil(t, findByKind(findings, KindImagesWithExif))
}

func TestCropBoxMediaBoxMismatch(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /CropBox [0 0 306 396] >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindCropBoxMediaBoxMismatch)
	require.NotNil(t, f)
	assert.Equal(t, "25.0%", f.EvidenceValue("visible_ratio"))
}

func TestDuplicateBookmarks(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /Outlines 5 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	b.AddObject(5, "<< /Type /Outlines /First 6 0 R >>")
	b.AddObject(6, "<< /Title (Chapter) /Dest [3 0 R /Fit] /Next 7 0 R >>")
	b.AddObject(7, "<< /Title (Chapter) /Dest [3 0 R /Fit] >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindDuplicateBookmarks)
	require.NotNil(t, f)
	assert.Equal(t, "Chapter", f.EvidenceValue("title"))
}

func TestInvalidBookmarkDestinations(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /Outlines 5 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	b.AddObject(5, "<< /Type /Outlines /First 6 0 R >>")
	b.AddObject(6, "<< /Title (Off the end) /Dest [9 /Fit] >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindInvalidBookmarkDestinations))
}

func TestMoreLayersThanPages(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /OCProperties << /OCGs [10 0 R 11 0 R 12 0 R] >> >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	b.AddObject(10, "<< /Type /OCG /Name (L1) >>")
	b.AddObject(11, "<< /Type /OCG /Name (L2) >>")
	b.AddObject(12, "<< /Type /OCG /Name (L3) >>")
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindMoreLayersThanPages)
	require.NotNil(t, f)
	assert.Equal(t, "3", f.EvidenceValue("layers"))
}

func TestPolyglotFile(t *testing.T) {
	payload := append([]byte("PK\x03\x04 fake zip header padding "), pdftest.SimpleDoc(nil)...)
	findings := evaluateAll(t, payload)

	f := findByKind(findings, KindPolyglotFile)
	require.NotNil(t, f)
	assert.Equal(t, "ZIP", f.EvidenceValue("prefix_format"))
}

func TestEncryptionPresent(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(8, "<< /Filter /Standard >>")
	b.FinishRevision(1, "/Encrypt 8 0 R")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindEncryptionPresent))
}

func TestEncryptionRestrictionsDecoded(t *testing.T) {
	// /P -44 clears the modification (8) and annotation (32) bits
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(8, "<< /Filter /Standard /V 2 /R 3 /P -44 >>")
	b.FinishRevision(1, "/Encrypt 8 0 R")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindEncryptionPresent)
	require.NotNil(t, f)
	assert.Equal(t, "Standard", f.EvidenceValue("filter"))
	assert.Equal(t, "2", f.EvidenceValue("version"))
	assert.Equal(t, "3", f.EvidenceValue("revision"))
	assert.Equal(t, "-44", f.EvidenceValue("permissions"))
	assert.Equal(t, "modification, annotations", f.EvidenceValue("restricted"))
	assert.Contains(t, f.Summary, "restricts modification, annotations")
}

func TestExcessiveWhiteColor(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 21; i++ {
		sb.WriteString("1 1 1 RG ")
	}
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte(sb.String()))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindExcessiveWhiteColor)
	require.NotNil(t, f)
	assert.Equal(t, "21", f.EvidenceValue("count"))
}

func TestTextOutsideMediaBox(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte("BT 1 0 0 1 -500 400 Tm (hidden off page) Tj ET"))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindTextOutsideMediaBox)
	require.NotNil(t, f)
	assert.Equal(t, "1", f.EvidenceValue("page"))
}

func TestTextInsideMediaBoxNotFlagged(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte("BT 1 0 0 1 72 720 Tm (normal) Tj ET"))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())
	assert.Nil(t, findByKind(findings, KindTextOutsideMediaBox))
}

func TestOCRLayer(t *testing.T) {
	scanPage := "q 612 0 0 792 0 0 cm /Im9 Do Q BT 1 0 0 1 72 400 Tm (recognized text) Tj ET"
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 2 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte(scanPage))
	b.AddObject(5, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 6 0 R >>")
	b.AddStreamObject(6, "", []byte(scanPage))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindOCRLayer)
	require.NotNil(t, f)
	assert.Equal(t, "2", f.EvidenceValue("pages_with_pattern"))
}

func TestOCRLayerSinglePageNotFlagged(t *testing.T) {
	scanPage := "q 612 0 0 792 0 0 cm /Im9 Do Q BT (text) Tj ET"
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte(scanPage))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())
	assert.Nil(t, findByKind(findings, KindOCRLayer))
}

func TestEmbeddedFiles(t *testing.T) {
	data := pdftest.SimpleDoc(func(b *pdftest.Builder) {
		b.AddStreamObject(6, "/Type /EmbeddedFile", []byte("attachment bytes"))
		b.AddObject(7, "<< /Type /Filespec /F (leak.xlsx) /EF << /F 6 0 R >> >>")
	})
	findings := evaluateAll(t, data)

	f := findByKind(findings, KindEmbeddedFiles)
	require.NotNil(t, f)
	assert.Equal(t, "leak.xlsx", f.EvidenceValue("filename"))
}

func TestFutureDatedTimestamps(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(5, "<< /CreationDate (D:20990101120000Z) >>")
	b.FinishRevision(1, "/Info 5 0 R")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindFutureDatedTimestamps))
}

func TestMultipleCreators(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddObject(5, "<< /Producer (Word) >>")
	b.FinishRevision(1, "/Info 5 0 R")
	b.AddObject(5, "<< /Producer (Acrobat Pro) >>")
	b.FinishRevision(1, "/Info 5 0 R")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindMultipleCreatorsOrProducers)
	require.NotNil(t, f)
	assert.Equal(t, "Producer", f.EvidenceValue("field"))
}

func TestMultipleDocumentIdsInTrailer(t *testing.T) {
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.FinishRevision(1, "/ID [<AABB> <AABB>]")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 /V 2 >>")
	b.FinishRevision(1, "/ID [<CCDD> <EEFF>]")
	findings := evaluateAll(t, b.Bytes())
	assert.NotNil(t, findByKind(findings, KindMultipleDocumentIds))
}

func TestXmpHistory(t *testing.T) {
	xmp := `<x:xmpmeta xmlns:x="adobe:ns:meta/">
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:xmpMM="http://ns.adobe.com/xap/1.0/mm/"
  xmlns:stEvt="http://ns.adobe.com/xap/1.0/sType/ResourceEvent#">
<xmpMM:History><rdf:Seq>
<rdf:li stEvt:action="saved" stEvt:when="2023-01-02T10:00:00Z" stEvt:softwareAgent="Acrobat"/>
</rdf:Seq></xmpMM:History>
</rdf:Description></rdf:RDF></x:xmpmeta>`
	b := pdftest.NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R /Metadata 6 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.AddStreamObject(6, "/Type /Metadata", []byte(xmp))
	b.FinishRevision(1, "")
	findings := evaluateAll(t, b.Bytes())

	f := findByKind(findings, KindXmpHistory)
	require.NotNil(t, f)
	assert.Contains(t, f.EvidenceValue("event_1"), "saved")
}

func TestClassify(t *testing.T) {
	high := []Finding{{Kind: KindHasRevisions, Severity: SeverityHigh}}
	medium := []Finding{{Kind: KindHasAnnotations, Severity: SeverityMedium}}

	assert.Equal(t, ClassificationRed, Classify(high, nil))
	assert.Equal(t, ClassificationYellow, Classify(medium, nil))
	assert.Equal(t, ClassificationYellow, Classify(nil, []Revision{{Status: RevisionValid}}))
	assert.Equal(t, ClassificationGreen, Classify(nil, []Revision{{Status: RevisionCorrupt}}))
	assert.Equal(t, ClassificationGreen, Classify(nil, nil))
}
