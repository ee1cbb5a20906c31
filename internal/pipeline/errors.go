package pipeline

import "errors"

var (
	ErrUnknownIndex = errors.New("unknown index")
	ErrNoInputs     = errors.New("no input files")
	ErrAllFailed    = errors.New("every item failed")
	ErrNoCloudMask  = errors.New("no local cloud mask for satellite")
	ErrUnsafeKey    = errors.New("object key escapes the data folder")
)
