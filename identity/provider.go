// Package identity adapts the authentication backend: who is signed in, and the
// sign-in, sign-up, reset and sign-out flows.
package identity

import (
	"context"
	"errors"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
)

// Provider is the identity backend the state-holders depend on. CurrentIdentity
// returns nil when nobody is signed in.
type Provider interface {
	CurrentIdentity() *models.Identity
	// IdentityChanges emits the current identity on subscribe and on every change.
	IdentityChanges() observable.Stream[*models.Identity]
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

// ProviderError is a failure reported by the backend; Message is shown to the user.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

func IsProviderError(err error) bool {
	var e *ProviderError
	return errors.As(err, &e)
}

// CurrentUID returns the signed-in uid, or "" when nobody is signed in.
func CurrentUID(p Provider) string {
	if id := p.CurrentIdentity(); id != nil {
		return id.UID
	}
	return ""
}
