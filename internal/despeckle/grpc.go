package despeckle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName   = "despeckle.Despeckler"
	denoiseMethod = "/" + serviceName + "/Denoise"
	maxMsgSize    = 10 * 1024 * 1024
)

var ErrBadPayload = errors.New("tile payload is not a square float32 grid")

// GRPCDenoiser calls the model sidecar. Tiles travel as little-endian
// float32 bytes wrapped in a BytesValue.
type GRPCDenoiser struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func NewGRPCDenoiser(addr string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCDenoiser, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to denoiser at %s: %w", addr, err)
	}
	return &GRPCDenoiser{conn: conn, timeout: timeout}, nil
}

func (g *GRPCDenoiser) Denoise(ctx context.Context, tile []float32, size int) ([]float32, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp := new(wrapperspb.BytesValue)
	if err := g.conn.Invoke(ctx, denoiseMethod, wrapperspb.Bytes(encodeTile(tile)), resp); err != nil {
		return nil, fmt.Errorf("error calling Denoise: %w", err)
	}
	out, err := decodeTile(resp.GetValue())
	if err != nil {
		return nil, err
	}
	if len(out) != size*size {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrBadTile, len(out), size*size)
	}
	return out, nil
}

func (g *GRPCDenoiser) Close() error {
	return g.conn.Close()
}

// RegisterServer exposes d on s under the same method the client calls.
func RegisterServer(s *grpc.Server, d Denoiser) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*Denoiser)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Denoise",
			Handler:    denoiseHandler,
		}},
		Metadata: "despeckle.proto",
	}, d)
}

func denoiseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req interface{}) (interface{}, error) {
		tile, err := decodeTile(req.(*wrapperspb.BytesValue).GetValue())
		if err != nil {
			return nil, err
		}
		size := int(math.Sqrt(float64(len(tile))))
		if size*size != len(tile) {
			return nil, fmt.Errorf("%w: %d samples", ErrBadPayload, len(tile))
		}
		out, err := srv.(Denoiser).Denoise(ctx, tile, size)
		if err != nil {
			return nil, err
		}
		return wrapperspb.Bytes(encodeTile(out)), nil
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: denoiseMethod}
	return interceptor(ctx, in, info, handle)
}

func encodeTile(tile []float32) []byte {
	buf := make([]byte, 4*len(tile))
	for i, v := range tile {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeTile(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadPayload, len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}
