package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"fleetmon-server/internal/model"
)

// StreamAck closes a client stream with the count of frames accepted.
type StreamAck struct {
	Received uint64 `json:"received"`
}

// GRPCIngest terminates agent client-streams and forwards decoded frames
// to the inbound channels. Streams are matched by their full method name,
// so agents with configurable method names keep working without generated
// service stubs.
type GRPCIngest struct {
	logger          *slog.Logger
	addr            string
	tlsConfig       *tls.Config
	token           string
	nodeMethod      string
	inventoryMethod string
	samples         chan<- model.NodeTelemetry
	inventory       chan<- model.ContainerList
}

func NewGRPCIngest(
	addr string,
	tlsCfg *tls.Config,
	token, nodeMethod, inventoryMethod string,
	samples chan<- model.NodeTelemetry,
	inventory chan<- model.ContainerList,
	logger *slog.Logger,
) *GRPCIngest {
	encoding.RegisterCodec(jsonCodec{})
	return &GRPCIngest{
		logger:          logger,
		addr:            addr,
		tlsConfig:       tlsCfg,
		token:           token,
		nodeMethod:      nodeMethod,
		inventoryMethod: inventoryMethod,
		samples:         samples,
		inventory:       inventory,
	}
}

// Serve listens until ctx is cancelled, then drains in-flight streams via
// graceful stop.
func (i *GRPCIngest) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", i.addr)
	if err != nil {
		return fmt.Errorf("listen grpc ingest %s: %w", i.addr, err)
	}

	opts := []grpc.ServerOption{grpc.UnknownServiceHandler(i.handleStream)}
	if i.tlsConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(i.tlsConfig)))
	}
	srv := grpc.NewServer(opts...)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	i.logger.Info("grpc ingest listening", "addr", i.addr)
	if err := srv.Serve(ln); err != nil {
		return fmt.Errorf("serve grpc ingest: %w", err)
	}
	return nil
}

func (i *GRPCIngest) handleStream(_ any, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "missing stream method")
	}
	if err := i.authorize(stream.Context()); err != nil {
		return err
	}
	switch method {
	case i.nodeMethod:
		return i.recvTelemetry(stream)
	case i.inventoryMethod:
		return i.recvInventory(stream)
	default:
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
}

func (i *GRPCIngest) authorize(ctx context.Context) error {
	if i.token == "" {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get("authorization") {
		if v == "Bearer "+i.token {
			return nil
		}
	}
	return status.Error(codes.Unauthenticated, "invalid or missing bearer token")
}

func (i *GRPCIngest) recvTelemetry(stream grpc.ServerStream) error {
	ctx := stream.Context()
	var received uint64
	for {
		var frame model.TelemetryFrame
		if err := stream.RecvMsg(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return i.ack(stream, received)
			}
			return fmt.Errorf("recv telemetry frame: %w", err)
		}
		sample := frame.Sample
		if sample.NodeName == "" {
			sample.NodeName = frame.NodeName
		}
		select {
		case i.samples <- sample:
			received++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (i *GRPCIngest) recvInventory(stream grpc.ServerStream) error {
	ctx := stream.Context()
	var received uint64
	for {
		var frame model.ContainerListFrame
		if err := stream.RecvMsg(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return i.ack(stream, received)
			}
			return fmt.Errorf("recv inventory frame: %w", err)
		}
		list := frame.Inventory
		if list.NodeName == "" {
			list.NodeName = frame.NodeName
		}
		select {
		case i.inventory <- list:
			received++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (i *GRPCIngest) ack(stream grpc.ServerStream, received uint64) error {
	if err := stream.SendMsg(&StreamAck{Received: received}); err != nil {
		i.logger.Debug("stream ack send failed", "error", err)
	}
	return nil
}
