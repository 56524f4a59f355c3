package stream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"convtrack/cli/internal/conversion"
)

const (
	defaultGRPCPort   = "50051"
	defaultGRPCMethod = "/conversion.ProgressService/StreamProgress"
)

// GRPCTransport reads progress lines from a server-streaming gRPC method.
// The request is a google.protobuf.Struct describing the job and every
// response is a google.protobuf.StringValue holding one data unit.
type GRPCTransport struct {
	Address string
	Method  string
	TLS     bool
	Session string
	// DialOptions are appended to the transport's own options.
	DialOptions []grpc.DialOption
}

func (t *GRPCTransport) Connect(ctx context.Context, spec conversion.JobSpec, txID string) (Conn, error) {
	target := t.Address
	host := target
	if !strings.Contains(target, "://") {
		if h, _, err := net.SplitHostPort(target); err == nil {
			host = h
		} else {
			target = net.JoinHostPort(target, defaultGRPCPort)
		}
	}

	creds := insecure.NewCredentials()
	if t.TLS {
		creds = credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, t.DialOptions...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("create grpc client: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	if t.Session != "" {
		sctx = metadata.AppendToOutgoingContext(sctx, "cookie", "AuthSession="+t.Session)
	}

	method := t.Method
	if method == "" {
		method = defaultGRPCMethod
	}
	cs, err := cc.NewStream(sctx, &grpc.StreamDesc{ServerStreams: true}, method)
	if err != nil {
		cancel()
		cc.Close()
		return nil, grpcError(err)
	}
	stream := &grpc.GenericClientStream[structpb.Struct, wrapperspb.StringValue]{ClientStream: cs}

	req, err := jobRequest(spec, txID)
	if err == nil {
		err = stream.Send(req)
	}
	if err == nil {
		err = stream.CloseSend()
	}
	if err != nil {
		cancel()
		cc.Close()
		return nil, grpcError(err)
	}
	return &grpcConn{cc: cc, stream: stream, cancel: cancel}, nil
}

func jobRequest(spec conversion.JobSpec, txID string) (*structpb.Struct, error) {
	targets := make([]any, 0, len(spec.Targets))
	for _, t := range spec.Targets {
		targets = append(targets, t)
	}
	return structpb.NewStruct(map[string]any{
		"source_type":    string(spec.SourceType),
		"schema":         spec.Schema,
		"object_type":    string(spec.ObjectType),
		"targets":        targets,
		"transaction_id": txID,
	})
}

type grpcConn struct {
	cc     *grpc.ClientConn
	stream grpc.ServerStreamingClient[wrapperspb.StringValue]
	cancel context.CancelFunc
}

func (c *grpcConn) Next() (string, error) {
	msg, err := c.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", grpcError(err)
	}
	return msg.GetValue(), nil
}

func (c *grpcConn) Close() error {
	c.cancel()
	return c.cc.Close()
}

// grpcError flattens a status error into "Code: message".
func grpcError(err error) error {
	if st, ok := status.FromError(err); ok {
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
	return err
}
