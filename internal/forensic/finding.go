// Package forensic evaluates parsed PDF documents against a catalog of
// alteration indicators, extracts prior revisions, and assembles the
// per-file report and risk classification.
package forensic

import (
	"fmt"
	"strings"
)

// Severity ranks a finding's weight in the classification.
type Severity int

const (
	SeverityMedium Severity = iota
	SeverityHigh
)

func (s Severity) String() string {
	if s == SeverityHigh {
		return "High"
	}
	return "Medium"
}

// Kind identifies an indicator.
type Kind string

const (
	KindHasRevisions                  Kind = "HasRevisions"
	KindTouchUpTextEdit               Kind = "TouchUpTextEdit"
	KindJavaScriptAutoExecute         Kind = "JavaScriptAutoExecute"
	KindMissingObjects                Kind = "MissingObjects"
	KindMultipleFontSubsets           Kind = "MultipleFontSubsets"
	KindMultipleCreatorsOrProducers   Kind = "MultipleCreatorsOrProducers"
	KindXmpHistory                    Kind = "XmpHistory"
	KindMultipleDocumentIds           Kind = "MultipleDocumentIds"
	KindMultipleStartxref             Kind = "MultipleStartxref"
	KindObjectsWithGenGreaterZero     Kind = "ObjectsWithGenGreaterZero"
	KindMoreLayersThanPages           Kind = "MoreLayersThanPages"
	KindLinearizedAndUpdated          Kind = "LinearizedAndUpdated"
	KindHasPieceInfo                  Kind = "HasPieceInfo"
	KindHasRedactions                 Kind = "HasRedactions"
	KindHasAnnotations                Kind = "HasAnnotations"
	KindAcroFormNeedAppearances       Kind = "AcroFormNeedAppearances"
	KindHasDigitalSignature           Kind = "HasDigitalSignature"
	KindDateInconsistency             Kind = "DateInconsistency"
	KindMetadataVersionMismatch       Kind = "MetadataVersionMismatch"
	KindSuspiciousTextPositioning     Kind = "SuspiciousTextPositioning"
	KindWhiteRectangleOverlay         Kind = "WhiteRectangleOverlay"
	KindExcessiveDrawingOperations    Kind = "ExcessiveDrawingOperations"
	KindOrphanedObjects               Kind = "OrphanedObjects"
	KindLargeObjectNumberGaps         Kind = "LargeObjectNumberGaps"
	KindContainsJavaScript            Kind = "ContainsJavaScript"
	KindDuplicateImagesDifferentXrefs Kind = "DuplicateImagesDifferentXrefs"
	KindImagesWithExif                Kind = "ImagesWithExif"
	KindCropBoxMediaBoxMismatch       Kind = "CropBoxMediaBoxMismatch"
	KindExcessiveFormFields           Kind = "ExcessiveFormFields"
	KindDuplicateBookmarks            Kind = "DuplicateBookmarks"
	KindInvalidBookmarkDestinations   Kind = "InvalidBookmarkDestinations"

	// Indicators carried over from the reference implementation beyond the
	// core catalog.
	KindPolyglotFile               Kind = "PolyglotFile"
	KindInvisibleText              Kind = "InvisibleText"
	KindEncryptionPresent          Kind = "EncryptionPresent"
	KindEmbeddedFiles              Kind = "EmbeddedFiles"
	KindFutureDatedTimestamps      Kind = "FutureDatedTimestamps"
	KindPDFACompliance             Kind = "PDFACompliance"
	KindSuspiciousJPEGQuantization Kind = "SuspiciousJPEGQuantization"
	KindOCRLayer                   Kind = "OCRLayer"
	KindExcessiveWhiteColor        Kind = "ExcessiveWhiteColor"
	KindTextOutsideMediaBox        Kind = "TextOutsideMediaBox"
)

// Detail is one evidence entry. Evidence is an ordered list so reports are
// deterministic.
type Detail struct {
	Key   string
	Value string
}

// Finding is a single indicator hit. Findings embed copies of their evidence
// strings and never reference the parsed document after emission.
type Finding struct {
	Kind     Kind
	Severity Severity
	Summary  string
	Evidence []Detail
}

// EvidenceValue returns the value stored under key, or "".
func (f *Finding) EvidenceValue(key string) string {
	for _, d := range f.Evidence {
		if d.Key == key {
			return d.Value
		}
	}
	return ""
}

func (f *Finding) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", f.Severity, f.Kind, f.Summary)
	return b.String()
}

// finding builds a Finding with ordered evidence pairs.
func finding(kind Kind, severity Severity, summary string, evidence ...Detail) Finding {
	return Finding{Kind: kind, Severity: severity, Summary: summary, Evidence: evidence}
}

func detail(key, value string) Detail { return Detail{Key: key, Value: value} }
