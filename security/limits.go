package security

import "time"

// Limits bounds the resources a single document may consume while it is
// decoded and rasterized. Remote documents are untrusted input.
type Limits struct {
	// Maximum decompressed stream size. Default: 100 MB.
	MaxDecompressedSize int64

	// Maximum chain of indirect references followed for one value. Default: 32.
	MaxIndirectDepth int

	// Maximum XRef sections (Prev entries). Default: 50.
	MaxXRefDepth int

	// Maximum page tree nesting. Default: 64.
	MaxPageTreeDepth int

	// Maximum form XObject nesting. Default: 12.
	MaxXObjectDepth int

	// Maximum array or dictionary entries. Default: 100,000.
	MaxCollectionSize int

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length (bytes). Default: 50 MB.
	MaxStreamLength int64

	// Maximum decode time per stream. Default: 10s.
	MaxDecodeTime time.Duration

	// Maximum pixels of one rendered surface. Default: 40 megapixels.
	MaxSurfacePixels int
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 * 1024 * 1024,
		MaxIndirectDepth:    32,
		MaxXRefDepth:        50,
		MaxPageTreeDepth:    64,
		MaxXObjectDepth:     12,
		MaxCollectionSize:   100000,
		MaxStringLength:     10 * 1024 * 1024,
		MaxStreamLength:     50 * 1024 * 1024,
		MaxDecodeTime:       10 * time.Second,
		MaxSurfacePixels:    40_000_000,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDecompressedSize <= 0 {
		l.MaxDecompressedSize = d.MaxDecompressedSize
	}
	if l.MaxIndirectDepth <= 0 {
		l.MaxIndirectDepth = d.MaxIndirectDepth
	}
	if l.MaxXRefDepth <= 0 {
		l.MaxXRefDepth = d.MaxXRefDepth
	}
	if l.MaxPageTreeDepth <= 0 {
		l.MaxPageTreeDepth = d.MaxPageTreeDepth
	}
	if l.MaxXObjectDepth <= 0 {
		l.MaxXObjectDepth = d.MaxXObjectDepth
	}
	if l.MaxCollectionSize <= 0 {
		l.MaxCollectionSize = d.MaxCollectionSize
	}
	if l.MaxStringLength <= 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	if l.MaxStreamLength <= 0 {
		l.MaxStreamLength = d.MaxStreamLength
	}
	if l.MaxDecodeTime <= 0 {
		l.MaxDecodeTime = d.MaxDecodeTime
	}
	if l.MaxSurfacePixels <= 0 {
		l.MaxSurfacePixels = d.MaxSurfacePixels
	}
	return l
}
