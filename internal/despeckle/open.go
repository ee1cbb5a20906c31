package despeckle

import (
	"fmt"
	"time"
)

// Open builds the denoiser named by kind: "grpc", "median" or "identity".
// The returned close func is never nil.
func Open(kind, addr string, timeout time.Duration) (Denoiser, func() error, error) {
	noop := func() error { return nil }
	switch kind {
	case "grpc", "":
		g, err := NewGRPCDenoiser(addr, timeout)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	case "median":
		return MedianDenoiser{}, noop, nil
	case "identity":
		return Identity, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown denoiser %q", kind)
	}
}
