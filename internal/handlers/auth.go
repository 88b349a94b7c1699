package handlers

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/dailyflo/backend/internal/middleware"
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/internal/services"
	"github.com/dailyflo/backend/internal/storage"
	"github.com/dailyflo/backend/pkg/logger"
	"github.com/dailyflo/backend/pkg/resettoken"
	"github.com/dailyflo/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB      *gorm.DB
	Lists   *services.ListService
	Storage *storage.MinIOClient
}

func NewAuthHandler(db *gorm.DB, lists *services.ListService, storageClient *storage.MinIOClient) *AuthHandler {
	return &AuthHandler{DB: db, Lists: lists, Storage: storageClient}
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
	FirstName       string `json:"firstName" validate:"max=100"`
	LastName        string `json:"lastName" validate:"max=100"`
}

func userPayload(user *models.User, tokens *utils.TokenPair) fiber.Map {
	payload := fiber.Map{
		"user":          user,
		"fullName":      user.FullName(),
		"preferredName": user.PreferredName(),
		"isSocial":      user.IsSocial(),
	}
	if tokens != nil {
		payload["tokens"] = tokens
	}
	return payload
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	if fieldErrors := utils.ValidateStruct(req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}
	if !utils.IsPasswordStrongEnough(req.Password) {
		return utils.ValidationFailed(c, map[string]string{"password": "must be at least 8 characters"})
	}
	if req.Password != req.PasswordConfirm {
		return utils.ValidationFailed(c, map[string]string{"passwordConfirm": "passwords do not match"})
	}

	var existing int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking email")
	}
	if existing > 0 {
		return utils.Error(c, fiber.StatusConflict, "an account with this email already exists")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	user := models.User{
		Email:        req.Email,
		AuthProvider: models.AuthProviderEmail,
		PasswordHash: &hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsActive:     true,
		Preferences:  map[string]interface{}{},
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return h.Lists.ProvisionDefaults(tx, &user)
	})
	if err != nil {
		// A concurrent registration can slip past the count above; the unique
		// index on email is the final arbiter.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "an account with this email already exists")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating account")
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating tokens")
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email": user.Email,
	})

	return utils.Success(c, fiber.StatusCreated, userPayload(&user, tokens))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	if fieldErrors := utils.ValidateStruct(req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	var user models.User
	err := h.DB.First(&user, "email = ?", req.Email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid email or password")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed looking up user")
	}

	// Social accounts have no local password; the error stays identical to a
	// wrong password so probing reveals nothing.
	if user.PasswordHash == nil || !utils.CheckPassword(*user.PasswordHash, req.Password) {
		logger.Warn("login_failed", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusBadRequest, "invalid email or password")
	}

	if user.SoftDeleted || !user.IsActive {
		return utils.Error(c, fiber.StatusBadRequest, "account is disabled")
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating tokens")
	}

	logger.InfoWithUser(user.ID.String(), "user_logged_in", nil)

	return utils.Success(c, fiber.StatusOK, userPayload(&user, tokens))
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if fieldErrors := utils.ValidateStruct(req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	claims, err := utils.ValidateRefreshToken(req.Refresh)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired refresh token")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}
	if user.SoftDeleted || !user.IsActive {
		return utils.Error(c, fiber.StatusUnauthorized, "account is disabled")
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating tokens")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"tokens": tokens})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	return utils.Success(c, fiber.StatusOK, userPayload(currentUser, nil))
}

type updateMeRequest struct {
	FirstName   *string                 `json:"firstName"`
	LastName    *string                 `json:"lastName"`
	DisplayName *string                 `json:"displayName"`
	Preferences *map[string]interface{} `json:"preferences"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		if trimmed == "" {
			updates["display_name"] = nil
		} else {
			updates["display_name"] = trimmed
		}
	}
	if req.Preferences != nil {
		updates["preferences"] = *req.Preferences
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(currentUser).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated profile")
	}

	return utils.Success(c, fiber.StatusOK, userPayload(&user, nil))
}

type changePasswordRequest struct {
	OldPassword        string `json:"oldPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required"`
	NewPasswordConfirm string `json:"newPasswordConfirm" validate:"required"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if fieldErrors := utils.ValidateStruct(req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}
	if !utils.IsPasswordStrongEnough(req.NewPassword) {
		return utils.ValidationFailed(c, map[string]string{"newPassword": "must be at least 8 characters"})
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return utils.ValidationFailed(c, map[string]string{"newPasswordConfirm": "passwords do not match"})
	}

	if currentUser.IsSocial() || currentUser.PasswordHash == nil {
		return utils.Error(c, fiber.StatusBadRequest, "social accounts have no local password")
	}
	if !utils.CheckPassword(*currentUser.PasswordHash, req.OldPassword) {
		return utils.ValidationFailed(c, map[string]string{"oldPassword": "old password is incorrect"})
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	if err := h.DB.Model(currentUser).Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating password")
	}

	logger.InfoWithUser(currentUser.ID.String(), "password_changed", nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}

// Deactivate soft-deletes the account. The row stays; every authenticated
// path rejects it from now on.
func (h *AuthHandler) Deactivate(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	updates := map[string]interface{}{
		"soft_deleted": true,
		"is_active":    false,
	}
	if err := h.DB.Model(currentUser).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deactivating account")
	}

	logger.InfoWithUser(currentUser.ID.String(), "account_deactivated", nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "account deactivated"})
}

func (h *AuthHandler) UploadAvatar(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "avatar storage is not configured")
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "avatar file is required")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return utils.Error(c, fiber.StatusBadRequest, "avatar must be an image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading avatar upload")
	}
	defer file.Close()

	objectName := "avatars/" + currentUser.ID.String() + strings.ToLower(path.Ext(fileHeader.Filename))
	if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing avatar")
	}

	if err := h.DB.Model(currentUser).Update("avatar_url", objectName).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving avatar reference")
	}

	signedURL, err := h.Storage.PresignedGetURL(c.Context(), objectName, 24*time.Hour)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed signing avatar url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"avatarURL": signedURL})
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestPasswordReset always answers 200 so the endpoint cannot be used to
// enumerate accounts. Token delivery (email) is outside this service; the
// issued token is only recorded in the audit trail.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req passwordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if fieldErrors := utils.ValidateStruct(req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	var user models.User
	err := h.DB.First(&user, "email = ? AND auth_provider = ? AND soft_deleted = ?", strings.TrimSpace(req.Email), models.AuthProviderEmail, false).Error
	if err == nil && user.IsActive {
		if token := resettoken.Generate(user.ID.String()); token != "" {
			logger.InfoWithUser(user.ID.String(), "password_reset_requested", nil)
		}
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "if the account exists, a reset token has been issued",
	})
}

type passwordResetConfirmRequest struct {
	Token              string `json:"token" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required"`
	NewPasswordConfirm string `json:"newPasswordConfirm" validate:"required"`
}

func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req passwordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if fieldErrors := utils.ValidateStruct(req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}
	if !utils.IsPasswordStrongEnough(req.NewPassword) {
		return utils.ValidationFailed(c, map[string]string{"newPassword": "must be at least 8 characters"})
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return utils.ValidationFailed(c, map[string]string{"newPasswordConfirm": "passwords do not match"})
	}

	tok, err := resettoken.Consume(req.Token)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid or expired reset token")
	}

	userID, err := parseUUID(tok.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid reset token")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ? AND auth_provider = ? AND soft_deleted = ?", userID, models.AuthProviderEmail, false).Error; err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid reset token")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	if err := h.DB.Model(&user).Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating password")
	}

	logger.InfoWithUser(user.ID.String(), "password_reset_completed", nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}
