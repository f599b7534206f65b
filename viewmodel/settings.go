package viewmodel

import (
	"context"

	"go.uber.org/zap"

	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

// CampaignsTopic is the push topic toggled from the settings screen.
const CampaignsTopic = "campaigns"

// TopicStore keeps the push topic subscriptions of this installation.
type TopicStore interface {
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	IsSubscribed(ctx context.Context, topic string) (bool, error)
}

type SettingsEventKind int

const (
	SettingsError SettingsEventKind = iota
	AccountDeleted
)

type SettingsEvent struct {
	Kind    SettingsEventKind
	Message string
	Err     error
}

// Settings is the state-holder of the settings and account screen.
type Settings struct {
	provider identity.Provider
	topics   TopicStore
	topic    string
	logger   *zap.Logger
	scope    *Scope

	enabled *observable.Value[bool]
	events  *observable.Events[SettingsEvent]
}

func NewSettings(parent context.Context, provider identity.Provider, topics TopicStore, topic string, logger *zap.Logger) *Settings {
	if topic == "" {
		topic = CampaignsTopic
	}
	s := &Settings{
		provider: provider,
		topics:   topics,
		topic:    topic,
		logger:   utils.OrNop(logger),
		scope:    NewScope(parent),
		enabled:  observable.NewValue(false),
		events:   observable.NewEvents[SettingsEvent](),
	}
	s.scope.Go(func(ctx context.Context) {
		on, err := topics.IsSubscribed(ctx, topic)
		if err != nil {
			s.logger.Warn("read notification setting failed", zap.Error(err))
			return
		}
		s.enabled.Set(on)
	})
	return s
}

func (s *Settings) NotificationsEnabled() *observable.Value[bool] { return s.enabled }
func (s *Settings) Events() *observable.Events[SettingsEvent]     { return s.events }

func (s *Settings) EnableNotifications() {
	s.scope.Go(func(ctx context.Context) {
		if err := s.topics.Subscribe(ctx, s.topic); err != nil {
			s.fail(err, "Unable to update notifications")
			return
		}
		s.enabled.Set(true)
	})
}

func (s *Settings) DisableNotifications() {
	s.scope.Go(func(ctx context.Context) {
		if err := s.topics.Unsubscribe(ctx, s.topic); err != nil {
			s.fail(err, "Unable to update notifications")
			return
		}
		s.enabled.Set(false)
	})
}

func (s *Settings) SignOut() {
	s.scope.Go(func(ctx context.Context) {
		if err := s.provider.SignOut(ctx); err != nil {
			s.fail(err, "Unable to sign out")
		}
	})
}

// DeleteAccount deletes the signed-in account and emits AccountDeleted, or SettingsError.
func (s *Settings) DeleteAccount() {
	s.scope.Go(func(ctx context.Context) {
		if err := s.provider.DeleteAccount(ctx); err != nil {
			s.fail(err, "Unable to delete account")
			return
		}
		s.events.Emit(SettingsEvent{Kind: AccountDeleted})
	})
}

func (s *Settings) fail(err error, fallback string) {
	s.logger.Debug("settings action failed", zap.Error(err))
	s.events.Emit(SettingsEvent{Kind: SettingsError, Message: models.Message(err, fallback), Err: err})
}

func (s *Settings) Wait() { s.scope.Wait() }

func (s *Settings) Close() { s.scope.Close() }
