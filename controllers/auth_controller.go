package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/utils"
	"github.com/cppla/hexfeed/viewmodel"
)

// AccountProvider is the identity backend together with its session and reset extras.
type AccountProvider interface {
	identity.Provider
	SessionToken() string
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
}

// AuthController handles sign-in, sign-up, password reset and account removal.
type AuthController struct {
	provider AccountProvider
	topics   viewmodel.TopicStore
	topic    string
	logger   *zap.Logger
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(provider AccountProvider, topics viewmodel.TopicStore, topic string, logger *zap.Logger) *AuthController {
	return &AuthController{provider: provider, topics: topics, topic: topic, logger: utils.OrNop(logger)}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn signs in with email and password and returns the session token.
func (a *AuthController) SignIn(ctx *gin.Context) {
	a.credentials(ctx, (*viewmodel.Auth).SignIn, http.StatusUnauthorized, 40120)
}

// SignUp creates an account, signs it in and returns the session token.
func (a *AuthController) SignUp(ctx *gin.Context) {
	a.credentials(ctx, (*viewmodel.Auth).SignUp, http.StatusBadRequest, 40040)
}

func (a *AuthController) credentials(ctx *gin.Context, submit func(*viewmodel.Auth), failStatus, failCode int) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	auth := viewmodel.NewAuth(ctx.Request.Context(), a.provider, a.logger)
	defer auth.Close()
	auth.OnEmailChanged(req.Email)
	auth.OnPasswordChanged(req.Password)
	submit(auth)
	auth.Wait()

	state := auth.UiState().Get()
	if state.ErrorMessage != "" {
		utils.Error(ctx, failStatus, failCode, state.ErrorMessage)
		return
	}
	a.session(ctx)
}

// SendPasswordReset mails a reset code to the account email.
func (a *AuthController) SendPasswordReset(ctx *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	auth := viewmodel.NewAuth(ctx.Request.Context(), a.provider, a.logger)
	defer auth.Close()
	auth.OnEmailChanged(req.Email)
	auth.SendPasswordReset()
	auth.Wait()

	state := auth.UiState().Get()
	if state.ErrorMessage != "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, state.ErrorMessage)
		return
	}
	utils.Success(ctx, gin.H{"message": state.InfoMessage})
}

// ConfirmPasswordReset sets a new password using a mailed reset code.
func (a *AuthController) ConfirmPasswordReset(ctx *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Code        string `json:"code" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if err := a.provider.ConfirmPasswordReset(ctx.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, err.Error())
		return
	}
	utils.Success(ctx, gin.H{"message": "Password updated"})
}

// SignOut ends the current session; its token is revoked.
func (a *AuthController) SignOut(ctx *gin.Context) {
	auth := viewmodel.NewAuth(ctx.Request.Context(), a.provider, a.logger)
	defer auth.Close()
	auth.SignOut()
	auth.Wait()
	utils.Success(ctx, gin.H{"signed_in": auth.UiState().Get().IsSignedIn})
}

// Me returns the signed-in identity.
func (a *AuthController) Me(ctx *gin.Context) {
	id := a.provider.CurrentIdentity()
	if id == nil {
		utils.ErrorFrom(ctx, models.ErrNotAuthenticated, "")
		return
	}
	utils.Success(ctx, gin.H{"identity": id})
}

// DeleteAccount removes the signed-in account.
func (a *AuthController) DeleteAccount(ctx *gin.Context) {
	settings := viewmodel.NewSettings(ctx.Request.Context(), a.provider, a.topics, a.topic, a.logger)
	defer settings.Close()
	settings.Wait()

	settings.DeleteAccount()
	ev, ok := settings.Events().Next(ctx.Request.Context())
	if !ok {
		utils.Error(ctx, http.StatusServiceUnavailable, 50300, "request cancelled")
		return
	}
	if ev.Kind != viewmodel.AccountDeleted {
		utils.ErrorFrom(ctx, ev.Err, ev.Message)
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}

func (a *AuthController) session(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"token":    a.provider.SessionToken(),
		"identity": a.provider.CurrentIdentity(),
	})
}
