package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

// LocalOptions configures a LocalProvider.
type LocalOptions struct {
	JWTSecret     string
	SessionTTL    time.Duration
	ResetCodeTTL  time.Duration
	ResetCooldown time.Duration
	Mailer        utils.Mailer
	Logger        *zap.Logger
}

// LocalProvider keeps accounts in the application database. A successful sign-in
// issues a JWT session token; sign-out revokes it through the token blacklist.
// Password reset codes are kept in the code store and mailed to the account email.
type LocalProvider struct {
	db     *gorm.DB
	opts   LocalOptions
	logger *zap.Logger

	current *observable.Value[*models.Identity]

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewLocalProvider(db *gorm.DB, opts LocalOptions) *LocalProvider {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 72 * time.Hour
	}
	if opts.ResetCodeTTL <= 0 {
		opts.ResetCodeTTL = 15 * time.Minute
	}
	if opts.ResetCooldown <= 0 {
		opts.ResetCooldown = 60 * time.Second
	}
	return &LocalProvider{
		db:      db,
		opts:    opts,
		logger:  utils.OrNop(opts.Logger),
		current: observable.NewValue[*models.Identity](nil),
	}
}

func (p *LocalProvider) CurrentIdentity() *models.Identity {
	if id := p.current.Get(); id != nil {
		cp := *id
		return &cp
	}
	return nil
}

func (p *LocalProvider) IdentityChanges() observable.Stream[*models.Identity] {
	return p.current.Stream()
}

// SessionToken returns the bearer token of the current session, "" when signed out.
func (p *LocalProvider) SessionToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	var acc models.Account
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ProviderError{Message: "Invalid email or password"}
	}
	if err != nil {
		return p.backendError("sign in", err)
	}
	if !passwordMatches(acc.PasswordHash, password) {
		return &ProviderError{Message: "Invalid email or password"}
	}
	return p.startSession(acc)
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return &ProviderError{Message: "The email address is badly formatted", Err: err}
	}
	if err := checkNewPassword(password); err != nil {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return p.backendError("hash password", err)
	}
	acc := models.Account{UID: uuid.NewString(), Email: email, PasswordHash: hash}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &ProviderError{Message: "The email address is already in use by another account"}
		}
		return tx.Create(&acc).Error
	})
	if err != nil {
		if IsProviderError(err) {
			return err
		}
		return p.backendError("sign up", err)
	}
	p.logger.Info("account created", zap.String("uid", acc.UID))
	return p.startSession(acc)
}

func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	var acc models.Account
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ProviderError{Message: "There is no account for this email"}
	}
	if err != nil {
		return p.backendError("password reset", err)
	}
	if !utils.EmailCooldownTrySet(email, p.opts.ResetCooldown) {
		return &ProviderError{Message: "Too many requests, try again later"}
	}
	if p.opts.Mailer == nil {
		return &ProviderError{Message: "Password reset is not available"}
	}

	code := utils.GenerateVerificationCode(6)
	utils.SaveResetCode(email, code, p.opts.ResetCodeTTL)
	body := fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, int(p.opts.ResetCodeTTL.Minutes()))
	if err := p.opts.Mailer.Send(email, "Reset your password", body); err != nil {
		return p.backendError("send reset mail", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password when code matches the last code mailed to email.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if err := checkNewPassword(newPassword); err != nil {
		return err
	}
	if !utils.ConsumeResetCode(email, strings.TrimSpace(code)) {
		return &ProviderError{Message: "Invalid or expired reset code"}
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return p.backendError("hash password", err)
	}
	res := p.db.WithContext(ctx).Model(&models.Account{}).Where("email = ?", email).Update("password_hash", hash)
	if res.Error != nil {
		return p.backendError("update password", res.Error)
	}
	if res.RowsAffected == 0 {
		return &ProviderError{Message: "There is no account for this email"}
	}
	return nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.endSession()
	return nil
}

// DeleteAccount removes the signed-in account and ends its session.
func (p *LocalProvider) DeleteAccount(ctx context.Context) error {
	id := p.current.Get()
	if id == nil {
		return models.ErrNotAuthenticated
	}
	if err := p.db.WithContext(ctx).Where("uid = ?", id.UID).Delete(&models.Account{}).Error; err != nil {
		return p.backendError("delete account", err)
	}
	p.logger.Info("account deleted", zap.String("uid", id.UID))
	p.endSession()
	return nil
}

// Restore resumes the session carried by a previously issued token.
func (p *LocalProvider) Restore(ctx context.Context, token string) error {
	if utils.IsTokenBlacklisted(token) {
		return &ProviderError{Message: "Session revoked"}
	}
	claims, err := utils.ParseToken(p.opts.JWTSecret, token)
	if err != nil {
		return &ProviderError{Message: "Invalid session", Err: err}
	}
	var acc models.Account
	err = p.db.WithContext(ctx).Where("uid = ?", claims.UID).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ProviderError{Message: "Invalid session"}
	}
	if err != nil {
		return p.backendError("restore session", err)
	}

	p.mu.Lock()
	p.token = token
	if claims.ExpiresAt != nil {
		p.expiresAt = claims.ExpiresAt.Time
	}
	p.mu.Unlock()
	id := acc.Identity()
	p.current.Set(&id)
	return nil
}

func (p *LocalProvider) startSession(acc models.Account) error {
	token, err := utils.GenerateToken(p.opts.JWTSecret, acc.UID, acc.Email, p.opts.SessionTTL)
	if err != nil {
		return p.backendError("issue session", err)
	}

	p.mu.Lock()
	previous, previousExp := p.token, p.expiresAt
	p.token = token
	p.expiresAt = time.Now().Add(p.opts.SessionTTL)
	p.mu.Unlock()
	if previous != "" && previous != token {
		utils.BlacklistToken(previous, previousExp)
	}

	id := acc.Identity()
	p.current.Set(&id)
	return nil
}

func (p *LocalProvider) endSession() {
	p.mu.Lock()
	token, exp := p.token, p.expiresAt
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
	if token != "" {
		utils.BlacklistToken(token, exp)
	}
	p.current.Set(nil)
}

func (p *LocalProvider) backendError(op string, err error) error {
	p.logger.Warn("identity backend failure", zap.String("op", op), zap.Error(err))
	return &ProviderError{Message: "Authentication service unavailable", Err: err}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
