package tagstream

import "errors"

var (
	// ErrMismatchedCloseTag is returned when a closing tag does not match the innermost open tag.
	ErrMismatchedCloseTag = errors.New("mismatched closing tag")

	// ErrUnexpectedCloseTag is returned when a closing tag appears while no tag is open.
	ErrUnexpectedCloseTag = errors.New("closing tag without open tag")

	// ErrEmptyTagName is returned for `<>` or `</>`.
	ErrEmptyTagName = errors.New("empty tag name")

	// ErrUnterminatedTag is returned by Close when the stream ended inside a tag.
	ErrUnterminatedTag = errors.New("unterminated tag at end of stream")

	// ErrParserFailed is returned by every call after a fatal parse error.
	ErrParserFailed = errors.New("parser already failed")
)
