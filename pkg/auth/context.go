package auth

import "context"

// VerificationContextKey is the key used to store the token verification
// in the request context.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even if they have the same
// name in different packages.
type VerificationContextKey struct{}

// WithVerification stores a token verification in the context.
// If v is nil, the original context is returned unchanged.
func WithVerification(ctx context.Context, v *Verification) context.Context {
	if v == nil {
		return ctx
	}
	return context.WithValue(ctx, VerificationContextKey{}, v)
}

// VerificationFromContext retrieves the token verification from the
// context. Returns the verification and true if present, nil and false
// otherwise.
func VerificationFromContext(ctx context.Context) (*Verification, bool) {
	v, ok := ctx.Value(VerificationContextKey{}).(*Verification)
	return v, ok
}
