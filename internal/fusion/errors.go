package fusion

import "errors"

var (
	ErrNoPairs      = errors.New("no fusion pairs found")
	ErrChannelShape = errors.New("fusion channels differ in size")
)
