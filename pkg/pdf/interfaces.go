package pdf

// Document represents a parsed source PDF. Page indices are stable for the
// lifetime of the document; deleting pages is a concern of the caller.
type Document interface {
	// GetPages returns all pages in the document
	GetPages() []Page

	// GetPage returns a specific page by index (0-based)
	GetPage(index int) (Page, error)

	// PageCount returns the total number of pages
	PageCount() int

	// Bytes returns a copy of the raw document bytes
	Bytes() []byte

	// Close releases resources associated with the document
	Close() error
}

// Page represents a single page of the source document
type Page interface {
	// GetPageNumber returns the page number (1-based)
	GetPageNumber() int

	// GetWidth returns the page width in points
	GetWidth() float64

	// GetHeight returns the page height in points
	GetHeight() float64

	// GetRotation returns the rotation stored in the page dictionary, in degrees
	GetRotation() int

	// GetBBox returns the page bounding box
	GetBBox() BoundingBox

	// TextRuns returns the positioned text of the page
	TextRuns() ([]TextRun, error)
}

// textLayer extracts positioned text for a page. It is backed by one of the
// rsc.io/pdf style readers.
type textLayer interface {
	Runs(pageNumber int) ([]TextRun, error)
}
