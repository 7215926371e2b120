package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/subscription-seating/internal/model"
	"github.com/iliyamo/subscription-seating/internal/repository"
	"github.com/iliyamo/subscription-seating/internal/utils"
)

// AuthHandler issues access tokens for service operators.  Seat
// requesters normally arrive with tokens minted by the tenant's identity
// provider; these endpoints exist for local accounts used to administer
// subscriptions.
type AuthHandler struct {
	Accounts   *repository.AccountRepo
	JWTSecret  string
	TTLMinutes int
	BcryptCost int
}

func NewAuthHandler(accounts *repository.AccountRepo, secret string, ttlMin, bcryptCost int) *AuthHandler {
	if accounts == nil {
		panic("nil account repository passed to NewAuthHandler")
	}
	return &AuthHandler{Accounts: accounts, JWTSecret: secret, TTLMinutes: ttlMin, BcryptCost: bcryptCost}
}

type registerRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var body registerRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Email == "" || len(body.Password) < 8 || body.TenantID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, tenant_id and a password of at least 8 characters are required"})
	}
	hash, err := utils.HashPassword(body.Password, h.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to hash password"})
	}
	account := &model.Account{
		Email:        body.Email,
		PasswordHash: hash,
		TenantID:     body.TenantID,
		Roles:        strings.Join(body.Roles, ","),
		IsActive:     true,
	}
	if err := h.Accounts.Create(c.Request().Context(), account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create account"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        account.ID,
		"email":     account.Email,
		"tenant_id": account.TenantID,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login.  A valid credential pair yields an
// access token carrying the account's tenant, email and roles.
func (h *AuthHandler) Login(c echo.Context) error {
	var body loginRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))

	account, err := h.Accounts.GetByEmail(c.Request().Context(), body.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !account.IsActive || !utils.VerifyPassword(account.PasswordHash, body.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	var roles []string
	if account.Roles != "" {
		roles = strings.Split(account.Roles, ",")
	}
	token, err := utils.NewAccessToken(
		h.JWTSecret,
		strconv.FormatUint(account.ID, 10),
		account.TenantID,
		[]string{account.Email},
		roles,
		h.TTLMinutes,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sign token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token.Token,
		"expires_at":   token.Exp.Format("2006-01-02T15:04:05Z07:00"),
	})
}
