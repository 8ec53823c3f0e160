package embedding

import "errors"

var (
	errInvalidDimensions   = errors.New("embedding: provider reports non-positive dimensions")
	errVectorCountMismatch = errors.New("embedding: provider returned a different number of vectors than texts")
)
