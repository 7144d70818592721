package sequential

import "errors"

// Sentinel errors for the decoder error categories from spec.md §7.
var (
	ErrShortMatrix  = errors.New("sequential: reliability matrix columns fewer than code constraint")
	ErrSymbolWidth  = errors.New("sequential: reliability matrix not compatible with code output symbol size")
	ErrNodeLimit    = errors.New("sequential: node limit exhausted")
	ErrMetricLimit  = errors.New("sequential: metric limit encountered")
	ErrLoopDetected = errors.New("sequential: loop condition detected")
)
