package forensic

import (
	"time"

	"github.com/Rasmus-Riis/PDFRecon/internal/config"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/content"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/document"
)

// Context carries everything an evaluator may read. Evaluators are pure:
// they inspect the context and emit findings, never mutating the document.
type Context struct {
	Doc   *document.Document
	Pages []*content.Stats
	Cfg   *config.Config

	// Now supplies the scan clock so future-date detection is testable.
	Now func() time.Time

	// jsAutoExec collects the action objects JavaScriptAutoExecute already
	// fired on, so ContainsJavaScript can suppress them. Populated during
	// evaluation; evaluator order in the registry guarantees the producer
	// runs first.
	jsAutoExec map[string]bool
}

// Evaluator is one indicator check in the registry.
type Evaluator struct {
	Kind Kind
	Eval func(*Context) []Finding
}

// Registry returns the evaluators in their canonical order. The order is
// part of the report contract: findings appear in registry order, making
// repeated scans byte-identical.
func Registry() []Evaluator {
	return []Evaluator{
		{KindHasRevisions, evalHasRevisions},
		{KindTouchUpTextEdit, evalTouchUpTextEdit},
		{KindJavaScriptAutoExecute, evalJavaScriptAutoExecute},
		{KindMissingObjects, evalMissingObjects},
		{KindMultipleFontSubsets, evalMultipleFontSubsets},
		{KindMultipleCreatorsOrProducers, evalMultipleCreatorsOrProducers},
		{KindXmpHistory, evalXmpHistory},
		{KindMultipleDocumentIds, evalMultipleDocumentIds},
		{KindMultipleStartxref, evalMultipleStartxref},
		{KindObjectsWithGenGreaterZero, evalObjectsWithGenGreaterZero},
		{KindMoreLayersThanPages, evalMoreLayersThanPages},
		{KindLinearizedAndUpdated, evalLinearizedAndUpdated},
		{KindHasPieceInfo, evalHasPieceInfo},
		{KindHasRedactions, evalHasRedactions},
		{KindHasAnnotations, evalHasAnnotations},
		{KindAcroFormNeedAppearances, evalAcroFormNeedAppearances},
		{KindHasDigitalSignature, evalHasDigitalSignature},
		{KindDateInconsistency, evalDateInconsistency},
		{KindMetadataVersionMismatch, evalMetadataVersionMismatch},
		{KindSuspiciousTextPositioning, evalSuspiciousTextPositioning},
		{KindWhiteRectangleOverlay, evalWhiteRectangleOverlay},
		{KindExcessiveDrawingOperations, evalExcessiveDrawingOperations},
		{KindOrphanedObjects, evalOrphanedObjects},
		{KindLargeObjectNumberGaps, evalLargeObjectNumberGaps},
		{KindContainsJavaScript, evalContainsJavaScript},
		{KindDuplicateImagesDifferentXrefs, evalDuplicateImages},
		{KindImagesWithExif, evalImagesWithExif},
		{KindCropBoxMediaBoxMismatch, evalCropBoxMediaBoxMismatch},
		{KindExcessiveFormFields, evalExcessiveFormFields},
		{KindDuplicateBookmarks, evalDuplicateBookmarks},
		{KindInvalidBookmarkDestinations, evalInvalidBookmarkDestinations},
		{KindPolyglotFile, evalPolyglotFile},
		{KindInvisibleText, evalInvisibleText},
		{KindEncryptionPresent, evalEncryptionPresent},
		{KindEmbeddedFiles, evalEmbeddedFiles},
		{KindFutureDatedTimestamps, evalFutureDatedTimestamps},
		{KindPDFACompliance, evalPDFACompliance},
		{KindSuspiciousJPEGQuantization, evalJPEGQuantTables},
		{KindOCRLayer, evalOCRLayer},
		{KindExcessiveWhiteColor, evalExcessiveWhiteColor},
		{KindTextOutsideMediaBox, evalTextOutsideMediaBox},
	}
}
