package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/utils"
	"github.com/cppla/hexfeed/viewmodel"
)

// SettingsController toggles the push notification topic of this installation.
type SettingsController struct {
	provider identity.Provider
	topics   viewmodel.TopicStore
	topic    string
	logger   *zap.Logger
}

func NewSettingsController(provider identity.Provider, topics viewmodel.TopicStore, topic string, logger *zap.Logger) *SettingsController {
	return &SettingsController{provider: provider, topics: topics, topic: topic, logger: utils.OrNop(logger)}
}

// GetNotifications reports whether the notification topic is subscribed.
func (s *SettingsController) GetNotifications(ctx *gin.Context) {
	settings := viewmodel.NewSettings(ctx.Request.Context(), s.provider, s.topics, s.topic, s.logger)
	defer settings.Close()
	settings.Wait()
	utils.Success(ctx, gin.H{"enabled": settings.NotificationsEnabled().Get()})
}

// UpdateNotifications subscribes to or unsubscribes from the notification topic.
func (s *SettingsController) UpdateNotifications(ctx *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	settings := viewmodel.NewSettings(ctx.Request.Context(), s.provider, s.topics, s.topic, s.logger)
	defer settings.Close()
	settings.Wait()

	if *req.Enabled {
		settings.EnableNotifications()
	} else {
		settings.DisableNotifications()
	}
	settings.Wait()

	select {
	case ev := <-settings.Events().C():
		utils.ErrorFrom(ctx, ev.Err, ev.Message)
	default:
		utils.Success(ctx, gin.H{"enabled": settings.NotificationsEnabled().Get()})
	}
}
