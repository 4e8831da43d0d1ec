package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/containerd/errdefs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errBackendStatus marks an HTTP status the backend returned that has no
// more specific errdefs kind.
var errBackendStatus = errors.New("unexpected backend status")

// errorForHTTPStatus wraps a non-2xx HTTP status with the errdefs kind the
// failure classifier understands.
func errorForHTTPStatus(route Route, code int) error {
	switch code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w (status %d)", route, errdefs.ErrUnauthenticated, code)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w (status %d)", route, errdefs.ErrInvalidArgument, code)
	case http.StatusInternalServerError:
		return fmt.Errorf("%s: %w (status %d)", route, errdefs.ErrInternal, code)
	default:
		return fmt.Errorf("%s: %w %d", route, errBackendStatus, code)
	}
}

// errorForGRPC maps a gRPC status onto the same errdefs kinds as the HTTP
// transport so callers never see transport-specific errors.
func errorForGRPC(route Route, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w: %w", route, errdefs.ErrUnavailable, err)
	}

	var kind error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = errdefs.ErrUnauthenticated
	case codes.InvalidArgument:
		kind = errdefs.ErrInvalidArgument
	case codes.Internal:
		kind = errdefs.ErrInternal
	case codes.Unavailable:
		kind = errdefs.ErrUnavailable
	case codes.DeadlineExceeded:
		kind = context.DeadlineExceeded
	default:
		return fmt.Errorf("%s: %w: %s", route, errBackendStatus, st.Code())
	}
	return fmt.Errorf("%s: %w: %s", route, kind, st.Message())
}
