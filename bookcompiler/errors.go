package bookcompiler

import "errors"

// Errors returned by the layout and assembly pipeline. They are wrapped with
// page or path context, so match them with errors.Is.
var (
	// ErrInvalidGeometry reports a trim size, dpi or bleed that cannot
	// produce a printable raster.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrTextOverflow reports a passage that does not fit its text box even
	// at the minimum font size.
	ErrTextOverflow = errors.New("text does not fit at minimum font size")

	// ErrContentMismatch reports a different number of passages and
	// illustrations, or a story page without an illustration.
	ErrContentMismatch = errors.New("text and image counts differ")

	ErrEmptyBook = errors.New("book has no pages")

	// ErrMissingCoverAsset reports an absent or unreadable front cover image.
	ErrMissingCoverAsset = errors.New("missing cover asset")

	ErrEncodingFailure = errors.New("pdf encoding failed")
)
