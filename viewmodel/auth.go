package viewmodel

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

// AuthUiState is rebuilt from the form and the identity on every change of either.
type AuthUiState struct {
	Email        string `json:"email"`
	Password     string `json:"-"`
	IsLoading    bool   `json:"is_loading"`
	ErrorMessage string `json:"error_message,omitempty"`
	InfoMessage  string `json:"info_message,omitempty"`
	IsSignedIn   bool   `json:"is_signed_in"`
}

// Auth is the state-holder of the sign-in, sign-up and reset forms.
type Auth struct {
	provider identity.Provider
	logger   *zap.Logger
	scope    *Scope

	mu       sync.Mutex
	form     AuthUiState
	signedIn bool
	ui       *observable.Value[AuthUiState]
}

func NewAuth(parent context.Context, provider identity.Provider, logger *zap.Logger) *Auth {
	a := &Auth{
		provider: provider,
		logger:   utils.OrNop(logger),
		scope:    NewScope(parent),
		signedIn: provider.CurrentIdentity() != nil,
	}
	a.ui = observable.NewValue(combineAuth(a.form, a.signedIn))

	a.scope.Watch(func(ctx context.Context) {
		sub := provider.IdentityChanges().Subscribe(ctx)
		defer sub.Close()
		for id := range sub.C() {
			a.mu.Lock()
			a.signedIn = id != nil
			a.publishLocked()
			a.mu.Unlock()
		}
	})
	return a
}

func (a *Auth) UiState() *observable.Value[AuthUiState] { return a.ui }

func combineAuth(form AuthUiState, signedIn bool) AuthUiState {
	out := form
	out.IsSignedIn = signedIn
	if signedIn {
		out.IsLoading = false
		out.ErrorMessage = ""
		out.InfoMessage = ""
	}
	return out
}

func (a *Auth) update(fn func(*AuthUiState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.form)
	a.publishLocked()
}

func (a *Auth) publishLocked() {
	a.ui.Set(combineAuth(a.form, a.signedIn))
}

func (a *Auth) OnEmailChanged(email string) {
	a.update(func(s *AuthUiState) {
		s.Email = email
		s.ErrorMessage = ""
	})
}

func (a *Auth) OnPasswordChanged(password string) {
	a.update(func(s *AuthUiState) {
		s.Password = password
		s.ErrorMessage = ""
	})
}

func (a *Auth) SignIn() {
	a.submitCredentials(a.provider.SignIn, "Unable to sign in")
}

func (a *Auth) SignUp() {
	a.submitCredentials(a.provider.SignUp, "Unable to create account")
}

func (a *Auth) submitCredentials(call func(ctx context.Context, email, password string) error, fallback string) {
	a.mu.Lock()
	email, password := strings.TrimSpace(a.form.Email), a.form.Password
	if email == "" || strings.TrimSpace(password) == "" {
		a.form.ErrorMessage = "Email and password are required"
		a.publishLocked()
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.launch(func(ctx context.Context) error {
		return call(ctx, email, password)
	}, fallback, "")
}

func (a *Auth) SendPasswordReset() {
	a.mu.Lock()
	email := strings.TrimSpace(a.form.Email)
	if email == "" {
		a.form.ErrorMessage = "Email is required"
		a.publishLocked()
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.launch(func(ctx context.Context) error {
		return a.provider.SendPasswordReset(ctx, email)
	}, "Unable to send reset email", "Password reset email sent")
}

func (a *Auth) launch(call func(ctx context.Context) error, fallback, info string) {
	a.update(func(s *AuthUiState) {
		s.IsLoading = true
		s.ErrorMessage = ""
		s.InfoMessage = ""
	})
	started := a.scope.Go(func(ctx context.Context) {
		err := call(ctx)
		a.mu.Lock()
		a.signedIn = a.provider.CurrentIdentity() != nil
		a.form.IsLoading = false
		if err != nil {
			a.form.ErrorMessage = models.Message(err, fallback)
		} else {
			a.form.InfoMessage = info
		}
		a.publishLocked()
		a.mu.Unlock()
		if err != nil {
			a.logger.Debug("auth request failed", zap.Error(err))
		}
	})
	if !started {
		a.update(func(s *AuthUiState) { s.IsLoading = false })
	}
}

func (a *Auth) SignOut() {
	a.scope.Go(func(ctx context.Context) {
		if err := a.provider.SignOut(ctx); err != nil {
			a.logger.Warn("sign out failed", zap.Error(err))
		}
		a.mu.Lock()
		a.signedIn = a.provider.CurrentIdentity() != nil
		a.publishLocked()
		a.mu.Unlock()
	})
}

func (a *Auth) ClearMessages() {
	a.update(func(s *AuthUiState) {
		s.ErrorMessage = ""
		s.InfoMessage = ""
	})
}

// Wait blocks until the auth requests issued so far have finished.
func (a *Auth) Wait() { a.scope.Wait() }

func (a *Auth) Close() { a.scope.Close() }
