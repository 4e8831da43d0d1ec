package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCServiceName is the fully qualified service the gRPC transport calls.
// Every method takes and returns a google.protobuf.Struct.
const GRPCServiceName = "techassist.v1.Assistant"

// DefaultGRPCMethods are the full method names for each route.
var DefaultGRPCMethods = map[Route]string{
	RouteAskInIsolation: "/" + GRPCServiceName + "/AskInIsolation",
	RouteAct:            "/" + GRPCServiceName + "/Act",
	RouteKnowledge:      "/" + GRPCServiceName + "/GetContextualResponse",
}

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GRPCConfig configures a GRPCTransport.
type GRPCConfig struct {
	Address          string
	Auth             Authenticator
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// WaitForReady forces a connection attempt at construction time.
	WaitForReady bool
	DialOptions  []grpc.DialOption
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
		WaitForReady:     true,
	}
}

// GRPCTransport talks to the backend over gRPC using Struct messages.
type GRPCTransport struct {
	conn    *grpc.ClientConn
	auth    Authenticator
	methods map[Route]string
	logger  *slog.Logger
}

// NewGRPCTransport creates a gRPC transport.
func NewGRPCTransport(cfg GRPCConfig, logger *slog.Logger) (*GRPCTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("assistant gRPC address is required")
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: false,
		}),
	}
	opts = append(opts, cfg.DialOptions...)

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to assistant at %s: %w", cfg.Address, err)
	}

	if cfg.WaitForReady {
		connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		defer cancel()
		if err := waitForReady(connectCtx, conn); err != nil {
			if closeErr := conn.Close(); closeErr != nil {
				logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
			}
			return nil, fmt.Errorf("assistant at %s not ready: %w", cfg.Address, err)
		}
	}

	auth := cfg.Auth
	if auth == nil {
		auth = NoAuth{}
	}

	logger.Info("Connected to assistant backend", "address", cfg.Address, "transport", "grpc")

	return &GRPCTransport{
		conn:    conn,
		auth:    auth,
		methods: DefaultGRPCMethods,
		logger:  logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Call implements Transport.
func (t *GRPCTransport) Call(ctx context.Context, route Route, payload any) ([]byte, error) {
	method, ok := t.methods[route]
	if !ok {
		return nil, fmt.Errorf("%s: %w: no gRPC method configured", route, errdefs.ErrInvalidArgument)
	}

	req, err := toStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", route, err)
	}

	authz, err := t.auth.Authorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", route, errdefs.ErrUnauthenticated, err)
	}
	if authz != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", authz)
	}

	resp := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, errorForGRPC(route, err)
	}

	data, err := protojson.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", route, err)
	}
	return data, nil
}

// Close implements Transport.
func (t *GRPCTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func toStruct(payload any) (*structpb.Struct, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}
