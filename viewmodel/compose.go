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
	"github.com/cppla/hexfeed/storage"
	"github.com/cppla/hexfeed/utils"
)

// Draft is the post being composed. Its id is fixed when the session starts.
type Draft struct {
	ID          string
	Title       string
	Description string
	Media       storage.Media
	ContentType string
}

// Compose is the state-holder of the post creation screen.
type Compose struct {
	store    PostStore
	uploader storage.Uploader
	provider identity.Provider
	clock    utils.Clock
	logger   *zap.Logger
	scope    *Scope

	mu            sync.Mutex
	draft         *observable.Value[Draft]
	titleError    *observable.Value[FormError]
	phase         *observable.Value[Phase]
	saveError     *observable.Value[string]
	saveCompleted *observable.Events[struct{}]
	lastErr       error
}

func NewCompose(parent context.Context, store PostStore, uploader storage.Uploader, provider identity.Provider, clock utils.Clock, logger *zap.Logger) *Compose {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	return &Compose{
		store:         store,
		uploader:      uploader,
		provider:      provider,
		clock:         clock,
		logger:        utils.OrNop(logger),
		scope:         NewScope(parent),
		draft:         observable.NewValue(Draft{ID: uuid.NewString()}),
		titleError:    observable.NewValue(FormErrorTitle),
		phase:         observable.NewValue(PhaseEditing),
		saveError:     observable.NewValue(""),
		saveCompleted: observable.NewEvents[struct{}](),
	}
}

func (c *Compose) Draft() *observable.Value[Draft]          { return c.draft }
func (c *Compose) TitleError() *observable.Value[FormError] { return c.titleError }
func (c *Compose) Phase() *observable.Value[Phase]          { return c.phase }

// SaveErrorMessage holds the last failure message, "" when none.
func (c *Compose) SaveErrorMessage() *observable.Value[string] { return c.saveError }

// SaveError returns the error behind SaveErrorMessage, nil when none.
func (c *Compose) SaveError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SaveCompleted fires once when the post was persisted.
func (c *Compose) SaveCompleted() *observable.Events[struct{}] { return c.saveCompleted }

func (c *Compose) IsSaving() bool {
	return c.phase.Get() == PhaseSubmitting
}

func (c *Compose) OnTitleChanged(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft.Update(func(d Draft) Draft {
		d.Title = title
		return d
	})
	c.titleError.Set(validateDraft(d))
}

func (c *Compose) OnDescriptionChanged(description string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Update(func(d Draft) Draft {
		d.Description = description
		return d
	})
}

// OnMediaSelected attaches media to the draft; nil clears the selection.
func (c *Compose) OnMediaSelected(media storage.Media, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Update(func(d Draft) Draft {
		d.Media = media
		d.ContentType = contentType
		if media == nil {
			d.ContentType = ""
		}
		return d
	})
}

// Submit validates the draft and, when valid and signed in, publishes it in the
// background: the media is uploaded first, then the post is written. A call made
// while a submission is running, or after completion, does nothing.
func (c *Compose) Submit() error {
	c.mu.Lock()
	if p := c.phase.Get(); p != PhaseEditing {
		c.mu.Unlock()
		return nil
	}
	draft := c.draft.Get()
	if validateDraft(draft) != FormErrorNone {
		c.mu.Unlock()
		return models.NewValidationError("title", "Title is required")
	}
	id := c.provider.CurrentIdentity()
	if id == nil {
		c.lastErr = models.ErrNotAuthenticated
		c.saveError.Set(models.ErrNotAuthenticated.Error())
		c.mu.Unlock()
		return models.ErrNotAuthenticated
	}
	c.phase.Set(PhaseSubmitting)
	c.lastErr = nil
	c.saveError.Set("")
	c.mu.Unlock()

	post := models.Post{
		ID:        draft.ID,
		Title:     strings.TrimSpace(draft.Title),
		Timestamp: utils.UnixMilli(c.clock),
	}
	if desc := strings.TrimSpace(draft.Description); desc != "" {
		post.Description = &desc
	}
	author := id.Author()
	post.Author = &author

	started := c.scope.Go(func(ctx context.Context) {
		c.finish(c.publish(ctx, post, draft))
	})
	if !started {
		c.finish(context.Canceled)
	}
	return nil
}

func (c *Compose) publish(ctx context.Context, post models.Post, draft Draft) error {
	if draft.Media != nil {
		url, err := c.uploader.Upload(ctx, draft.ID, draft.Media, draft.ContentType)
		if err != nil {
			return err
		}
		post.PhotoURL = &url
	}
	return c.store.SubmitPost(ctx, post)
}

func (c *Compose) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err != nil {
		c.logger.Debug("post submission failed", zap.Error(err))
		c.saveError.Set(models.Message(err, "Unable to save post"))
		c.phase.Set(PhaseEditing)
		return
	}
	c.phase.Set(PhaseCompleted)
	c.saveCompleted.Emit(struct{}{})
}

// Wait blocks until the running submission, if any, has finished.
func (c *Compose) Wait() { c.scope.Wait() }

func (c *Compose) Close() { c.scope.Close() }

func validateDraft(d Draft) FormError {
	if strings.TrimSpace(d.Title) == "" {
		return FormErrorTitle
	}
	return FormErrorNone
}
