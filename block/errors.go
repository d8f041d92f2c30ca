package block

import "errors"

// Semantic errors returned by Graph operations. These are reported to
// callers and fed into the slashing evidence pipeline where applicable;
// they never panic or abort the graph.
var (
	ErrDuplicate        = errors.New("block: duplicate block hash")
	ErrParentMissing    = errors.New("block: parent not found")
	ErrHeightInvalid    = errors.New("block: height must be parent height + 1")
	ErrNotFound         = errors.New("block: not found")
	ErrInvalidThreshold = errors.New("block: threshold_bps must satisfy 5000 < threshold_bps <= 10000")
)
