package assistant

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ashureev/techassist/internal/domain"
	"github.com/containerd/errdefs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type assistantServer interface {
	handle(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
}

type fakeAssistant struct {
	fn func(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
}

func (f *fakeAssistant) handle(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	return f.fn(ctx, method, in)
}

func structMethod(name string) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(assistantServer).handle(ctx, name, in)
		},
	}
}

var assistantServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*assistantServer)(nil),
	Methods: []grpc.MethodDesc{
		structMethod("AskInIsolation"),
		structMethod("Act"),
		structMethod("GetContextualResponse"),
	},
}

func newBufconnTransport(t *testing.T, auth Authenticator, fn func(context.Context, string, *structpb.Struct) (*structpb.Struct, error)) *GRPCTransport {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&assistantServiceDesc, &fakeAssistant{fn: fn})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := DefaultGRPCConfig("passthrough:///bufnet")
	cfg.Auth = auth
	cfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	tr, err := NewGRPCTransport(cfg, nil)
	if err != nil {
		t.Fatalf("NewGRPCTransport failed: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestGRPCTransportAct(t *testing.T) {
	var gotMethod, gotQuery, gotAuth string
	var gotContextLen int
	tr := newBufconnTransport(t, BearerToken{Token: "secret"}, func(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
		gotMethod = method
		gotQuery = in.GetFields()["query"].GetStringValue()
		envelope := in.GetFields()["context"].GetStructValue()
		gotContextLen = len(envelope.GetFields()["context"].GetListValue().GetValues())
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("authorization"); len(v) > 0 {
				gotAuth = v[0]
			}
		}
		return structpb.NewStruct(map[string]any{
			"code": 200,
			"output": map[string]any{
				"data": map[string]any{"response": "Try restarting"},
			},
		})
	})

	client := NewClient(tr, nil)
	reply, err := client.Act(context.Background(), "it broke", []domain.ContextEntry{
		{Role: domain.RoleSystem, Content: "steps"},
	})
	if err != nil {
		t.Fatalf("Act failed: %v", err)
	}

	if gotMethod != "Act" {
		t.Errorf("expected Act method, got %q", gotMethod)
	}
	if gotQuery != "it broke" {
		t.Errorf("expected query to be forwarded, got %q", gotQuery)
	}
	if gotContextLen != 1 {
		t.Errorf("expected 1 context entry, got %d", gotContextLen)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer credential, got %q", gotAuth)
	}
	if reply.Kind != ReplyText || reply.Text != "Try restarting" {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

func TestGRPCTransportStatusMapping(t *testing.T) {
	tests := []struct {
		name  string
		code  codes.Code
		check func(error) bool
	}{
		{"unauthenticated", codes.Unauthenticated, errdefs.IsUnauthorized},
		{"invalid argument", codes.InvalidArgument, errdefs.IsInvalidArgument},
		{"internal", codes.Internal, errdefs.IsInternal},
		{"unavailable", codes.Unavailable, errdefs.IsUnavailable},
		{"deadline", codes.DeadlineExceeded, errdefs.IsDeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newBufconnTransport(t, nil, func(context.Context, string, *structpb.Struct) (*structpb.Struct, error) {
				return nil, status.Error(tt.code, "nope")
			})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := tr.Call(ctx, RouteAskInIsolation, QueryRequest{Query: "q"})
			if err == nil || !tt.check(err) {
				t.Fatalf("expected %s kind, got %v", tt.name, err)
			}
		})
	}
}
