package rowcodec

import "errors"

// errMalformed is wrapped into a tegerrors.CorruptionError with context
// at each call site rather than compared directly by callers.
var errMalformed = errors.New("malformed row record")
