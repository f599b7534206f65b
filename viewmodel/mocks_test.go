package viewmodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cppla/hexfeed/gateway"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/repository"
	"github.com/cppla/hexfeed/storage"
)

// MockStore records mutations with testify's mock and serves reads from an
// in-memory repository.
type MockStore struct {
	mock.Mock
	Gateway *gateway.MemoryGateway
	repo    *repository.PostRepository
}

func NewMockStore() *MockStore {
	gw := gateway.NewMemoryGateway(nil)
	return &MockStore{Gateway: gw, repo: repository.NewPostRepository(gw, nil)}
}

func (m *MockStore) Feed() observable.Stream[[]models.Post]         { return m.repo.Feed() }
func (m *MockStore) Post(id string) observable.Stream[*models.Post] { return m.repo.Post(id) }

func (m *MockStore) SubmitPost(ctx context.Context, post models.Post) error {
	return m.Called(ctx, post).Error(0)
}

func (m *MockStore) SubmitComment(ctx context.Context, postID string, comment models.Comment) error {
	return m.Called(ctx, postID, comment).Error(0)
}

func (m *MockStore) DeletePost(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) DeleteComment(ctx context.Context, postID, commentID string) error {
	return m.Called(ctx, postID, commentID).Error(0)
}

// MockProvider keeps the current identity in an observable value; the remote
// calls go through testify's mock.
type MockProvider struct {
	mock.Mock
	current *observable.Value[*models.Identity]
}

func NewMockProvider(initial *models.Identity) *MockProvider {
	return &MockProvider{current: observable.NewValue(initial)}
}

func (m *MockProvider) SetIdentity(id *models.Identity) { m.current.Set(id) }

func (m *MockProvider) CurrentIdentity() *models.Identity { return m.current.Get() }

func (m *MockProvider) IdentityChanges() observable.Stream[*models.Identity] {
	return m.current.Stream()
}

func (m *MockProvider) SignIn(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

func (m *MockProvider) SignUp(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

func (m *MockProvider) SendPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProvider) DeleteAccount(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, ownerID string, media storage.Media, contentType string) (string, error) {
	args := m.Called(ctx, ownerID, media, contentType)
	return args.String(0), args.Error(1)
}

type MockTopics struct {
	mock.Mock
}

func (m *MockTopics) Subscribe(ctx context.Context, topic string) error {
	return m.Called(ctx, topic).Error(0)
}

func (m *MockTopics) Unsubscribe(ctx context.Context, topic string) error {
	return m.Called(ctx, topic).Error(0)
}

func (m *MockTopics) IsSubscribed(ctx context.Context, topic string) (bool, error) {
	args := m.Called(ctx, topic)
	return args.Bool(0), args.Error(1)
}

func user(uid string) *models.Identity {
	return &models.Identity{UID: uid, Email: uid + "@example.com"}
}

func nextEvent[T any](t *testing.T, events *observable.Events[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, ok := events.Next(ctx)
	require.True(t, ok, "no event emitted")
	return v
}

func noEvent[T any](t *testing.T, events *observable.Events[T]) {
	t.Helper()
	select {
	case v := <-events.C():
		t.Fatalf("unexpected event %+v", v)
	case <-time.After(30 * time.Millisecond):
	}
}
