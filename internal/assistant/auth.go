package assistant

import "context"

// Authenticator produces the credential attached to every backend call.
// An empty value means the call goes out unauthenticated.
type Authenticator interface {
	Authorization(ctx context.Context) (string, error)
}

// NoAuth sends no credential.
type NoAuth struct{}

// Authorization implements Authenticator.
func (NoAuth) Authorization(context.Context) (string, error) { return "", nil }

// BearerToken sends a static bearer token.
type BearerToken struct {
	Token string
}

// Authorization implements Authenticator.
func (b BearerToken) Authorization(context.Context) (string, error) {
	if b.Token == "" {
		return "", nil
	}
	return "Bearer " + b.Token, nil
}
