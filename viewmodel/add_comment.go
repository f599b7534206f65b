package viewmodel

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

const emptyCommentMessage = "Comment cannot be empty"

// AddComment is the state-holder of the comment screen of one post.
type AddComment struct {
	postID   string
	store    PostStore
	provider identity.Provider
	clock    utils.Clock
	logger   *zap.Logger
	scope    *Scope

	mu            sync.Mutex
	text          *observable.Value[string]
	phase         *observable.Value[Phase]
	errorMessage  *observable.Value[string]
	saveCompleted *observable.Events[struct{}]
	lastErr       error
}

func NewAddComment(parent context.Context, postID string, store PostStore, provider identity.Provider, clock utils.Clock, logger *zap.Logger) *AddComment {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	return &AddComment{
		postID:        postID,
		store:         store,
		provider:      provider,
		clock:         clock,
		logger:        utils.OrNop(logger),
		scope:         NewScope(parent),
		text:          observable.NewValue(""),
		phase:         observable.NewValue(PhaseEditing),
		errorMessage:  observable.NewValue(""),
		saveCompleted: observable.NewEvents[struct{}](),
	}
}

func (a *AddComment) Text() *observable.Value[string]             { return a.text }
func (a *AddComment) Phase() *observable.Value[Phase]             { return a.phase }
func (a *AddComment) ErrorMessage() *observable.Value[string]     { return a.errorMessage }
func (a *AddComment) SaveCompleted() *observable.Events[struct{}] { return a.saveCompleted }

// SaveError returns the error behind ErrorMessage, nil when none.
func (a *AddComment) SaveError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *AddComment) IsSaving() bool {
	return a.phase.Get() == PhaseSubmitting
}

func (a *AddComment) OnCommentChanged(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text.Set(text)
	a.lastErr = nil
	a.errorMessage.Set("")
}

// Submit publishes the trimmed comment in the background. Calls made while a
// submission is running, or after completion, do nothing.
func (a *AddComment) Submit() error {
	a.mu.Lock()
	if a.phase.Get() != PhaseEditing {
		a.mu.Unlock()
		return nil
	}
	text := strings.TrimSpace(a.text.Get())
	if text == "" {
		a.lastErr = models.NewValidationError("text", emptyCommentMessage)
		a.errorMessage.Set(emptyCommentMessage)
		a.mu.Unlock()
		return a.lastErr
	}
	id := a.provider.CurrentIdentity()
	if id == nil {
		a.lastErr = models.ErrNotAuthenticated
		a.errorMessage.Set(models.ErrNotAuthenticated.Error())
		a.mu.Unlock()
		return models.ErrNotAuthenticated
	}
	a.phase.Set(PhaseSubmitting)
	a.lastErr = nil
	a.errorMessage.Set("")
	a.mu.Unlock()

	author := id.Author()
	comment := models.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		Timestamp: utils.UnixMilli(a.clock),
		Author:    &author,
	}
	started := a.scope.Go(func(ctx context.Context) {
		a.finish(a.store.SubmitComment(ctx, a.postID, comment))
	})
	if !started {
		a.finish(context.Canceled)
	}
	return nil
}

func (a *AddComment) finish(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
	if err != nil {
		a.logger.Debug("comment submission failed", zap.String("post_id", a.postID), zap.Error(err))
		a.errorMessage.Set(models.Message(err, "Unable to save comment"))
		a.phase.Set(PhaseEditing)
		return
	}
	a.phase.Set(PhaseCompleted)
	a.saveCompleted.Emit(struct{}{})
}

func (a *AddComment) Wait() { a.scope.Wait() }

func (a *AddComment) Close() { a.scope.Close() }
