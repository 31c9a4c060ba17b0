package texture

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidInput marks errors caused by the caller's data: empty or
	// short pixel buffers, zero extents, unreadable face files.
	ErrInvalidInput = errors.New("invalid texture input")
	// ErrUnsupportedTransition is returned for a layout pair outside the
	// transition table.
	ErrUnsupportedTransition = errors.New("unsupported layout transition")
	// ErrUnsupportedFormat is returned when a format cannot be blitted with
	// a linear filter.
	ErrUnsupportedFormat = errors.New("format does not support linear blitting")
)
