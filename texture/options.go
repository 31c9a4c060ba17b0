package texture

import (
	"io"

	"golang.org/x/exp/slog"
)

// options tune how a texture is built. The zero value reproduces the
// long-standing loader behavior: a single mip level left in transfer-dst
// layout, and no logging.
type options struct {
	Logger *slog.Logger

	// HonorMipRequest builds a full mip chain when mips are requested.
	// Without it the texture always has exactly one level.
	HonorMipRequest bool
	// AllLayerMips blits every array layer when building the mip chain.
	// Without it only layer 0 is downsampled.
	AllLayerMips bool
	// FinalizeSingleLevel moves a single-level texture to shader-read-only
	// layout after the upload.
	FinalizeSingleLevel bool
}

// Option adjusts how New, FromPixels and CreateTextureImage build a texture.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.Logger = logger
	}
}

func WithMipRequest(honor bool) Option {
	return func(o *options) {
		o.HonorMipRequest = honor
	}
}

func WithAllLayerMips(enabled bool) Option {
	return func(o *options) {
		o.AllLayerMips = enabled
	}
}

func WithFinalizeSingleLevel(enabled bool) Option {
	return func(o *options) {
		o.FinalizeSingleLevel = enabled
	}
}

func newOptions(opts ...Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (o options) logger() *slog.Logger {
	if o.Logger == nil {
		return discardLogger
	}
	return o.Logger
}
