package identity

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/utils"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	code := regexp.MustCompile(`\d{6}`).FindString(m.sent[len(m.sent)-1])
	require.NotEmpty(t, code)
	return code
}

func newTestProvider(t *testing.T) (*LocalProvider, *captureMailer) {
	t.Helper()
	utils.SetRedis(nil)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Account{}))

	m := &captureMailer{}
	return NewLocalProvider(db, LocalOptions{JWTSecret: "test-secret", Mailer: m}), m
}

func TestLocalProvider_SignUpSignsIn(t *testing.T) {
	p, _ := newTestProvider(t)
	email := gofakeit.Email()

	require.NoError(t, p.SignUp(context.Background(), "  "+email+" ", "secret123"))

	id := p.CurrentIdentity()
	require.NotNil(t, id)
	assert.NotEmpty(t, id.UID)
	assert.Equal(t, normalizeEmail(email), id.Email)
	assert.NotEmpty(t, p.SessionToken())

	claims, err := utils.ParseToken("test-secret", p.SessionToken())
	require.NoError(t, err)
	assert.Equal(t, id.UID, claims.UID)
}

func TestLocalProvider_SignUpRejectsDuplicateAndShortPassword(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	email := gofakeit.Email()
	require.NoError(t, p.SignUp(ctx, email, "secret123"))

	err := p.SignUp(ctx, email, "another123")
	require.Error(t, err)
	assert.True(t, IsProviderError(err))

	err = p.SignUp(ctx, gofakeit.Email(), "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6")

	err = p.SignUp(ctx, "not-an-email", "secret123")
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
}

func TestLocalProvider_SignInWrongPassword(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	email := gofakeit.Email()
	require.NoError(t, p.SignUp(ctx, email, "secret123"))
	require.NoError(t, p.SignOut(ctx))

	err := p.SignIn(ctx, email, "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())
	assert.Nil(t, p.CurrentIdentity())

	require.NoError(t, p.SignIn(ctx, email, "secret123"))
	assert.NotNil(t, p.CurrentIdentity())
}

func TestLocalProvider_SignOutRevokesToken(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, gofakeit.Email(), "secret123"))
	token := p.SessionToken()

	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, p.CurrentIdentity())
	assert.Empty(t, p.SessionToken())
	assert.True(t, utils.IsTokenBlacklisted(token))

	err := p.Restore(ctx, token)
	assert.True(t, IsProviderError(err))
}

func TestLocalProvider_RestoreResumesSession(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, gofakeit.Email(), "secret123"))
	uid := p.CurrentIdentity().UID
	token := p.SessionToken()

	other := NewLocalProvider(p.db, LocalOptions{JWTSecret: "test-secret"})
	require.NoError(t, other.Restore(ctx, token))
	require.NotNil(t, other.CurrentIdentity())
	assert.Equal(t, uid, other.CurrentIdentity().UID)
}

func TestLocalProvider_PasswordResetFlow(t *testing.T) {
	p, mailer := newTestProvider(t)
	ctx := context.Background()
	email := gofakeit.Email()
	require.NoError(t, p.SignUp(ctx, email, "secret123"))
	require.NoError(t, p.SignOut(ctx))

	require.NoError(t, p.SendPasswordReset(ctx, email))
	code := mailer.lastCode(t)

	err := p.SendPasswordReset(ctx, email)
	require.Error(t, err, "second request inside the cooldown")

	require.NoError(t, p.ConfirmPasswordReset(ctx, email, code, "newsecret"))
	err = p.ConfirmPasswordReset(ctx, email, code, "again123")
	require.Error(t, err, "codes are single use")

	require.NoError(t, p.SignIn(ctx, email, "newsecret"))
}

func TestLocalProvider_SendPasswordResetUnknownEmail(t *testing.T) {
	p, _ := newTestProvider(t)
	err := p.SendPasswordReset(context.Background(), gofakeit.Email())
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
}

func TestLocalProvider_DeleteAccount(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	assert.True(t, models.IsNotAuthenticated(p.DeleteAccount(ctx)))

	email := gofakeit.Email()
	require.NoError(t, p.SignUp(ctx, email, "secret123"))
	require.NoError(t, p.DeleteAccount(ctx))
	assert.Nil(t, p.CurrentIdentity())

	err := p.SignIn(ctx, email, "secret123")
	require.Error(t, err)
}

func TestLocalProvider_IdentityChanges(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := p.IdentityChanges().Subscribe(ctx)
	defer sub.Close()
	read := func() *models.Identity {
		select {
		case v := <-sub.C():
			return v
		case <-time.After(2 * time.Second):
			t.Fatal("no identity emitted")
			return nil
		}
	}

	assert.Nil(t, read())
	require.NoError(t, p.SignUp(ctx, gofakeit.Email(), "secret123"))
	assert.NotNil(t, read())
	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, read())
}
