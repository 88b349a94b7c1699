package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/dailyflo/backend/internal/config"
	"github.com/dailyflo/backend/internal/services"
	"github.com/dailyflo/backend/pkg/logger"
	"github.com/dailyflo/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SSOHandler struct {
	DB           *gorm.DB
	Cfg          *config.Config
	OAuthService *services.OAuthProviderService
	Accounts     *services.SocialAccountService
}

func NewSSOHandler(db *gorm.DB, cfg *config.Config, lists *services.ListService) *SSOHandler {
	return &SSOHandler{
		DB:           db,
		Cfg:          cfg,
		OAuthService: services.NewOAuthProviderService(cfg),
		Accounts:     services.NewSocialAccountService(db, lists),
	}
}

func (h *SSOHandler) GetLoginRedirect(c *fiber.Ctx) error {
	provider := c.Params("provider")

	oauthCfg, providerName, err := h.OAuthService.GetOAuthConfig(provider)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.OAuthService.GenerateState(string(providerName))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating state")
	}

	stateJSON, _ := json.Marshal(state)
	stateEncoded := base64.URLEncoding.EncodeToString(stateJSON)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url": oauthCfg.AuthCodeURL(stateEncoded),
	})
}

func (h *SSOHandler) HandleOAuthCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	code := c.Query("code")

	frontendURL := h.Cfg.Server.FrontendURL

	if code == "" {
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape("authorization code is required"))
	}

	profile, err := h.processOAuthCallback(c.Context(), provider, code)
	if err != nil {
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape(err.Error()))
	}

	user, err := h.Accounts.FindOrCreateUser(profile)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) || errors.Is(err, services.ErrAccountDisabled) {
			return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape(err.Error()))
		}
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape("login failed"))
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape("failed to generate tokens"))
	}

	logger.InfoWithUser(user.ID.String(), "social_login_success", map[string]interface{}{
		"provider": provider,
	})

	return c.Redirect(frontendURL + "/auth/callback?access=" + url.QueryEscape(tokens.Access) + "&refresh=" + url.QueryEscape(tokens.Refresh))
}

func (h *SSOHandler) processOAuthCallback(ctx context.Context, provider, code string) (*services.SocialProfile, error) {
	token, err := h.OAuthService.ExchangeCode(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	return h.OAuthService.GetUserInfo(ctx, provider, token)
}
