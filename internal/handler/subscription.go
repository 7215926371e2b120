package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/subscription-seating/internal/model"
	"github.com/iliyamo/subscription-seating/internal/repository"
)

// SubscriptionHandler manages the subscription admin API: creation,
// inspection and partial updates.  Admission never goes through these
// endpoints.
type SubscriptionHandler struct {
	Subs      *repository.SubscriptionRepo
	Summaries *repository.SummaryRepo
}

// NewSubscriptionHandler constructs a SubscriptionHandler with the
// provided repositories.  All dependencies must be non-nil.
func NewSubscriptionHandler(subs *repository.SubscriptionRepo, summaries *repository.SummaryRepo) *SubscriptionHandler {
	if subs == nil || summaries == nil {
		panic("nil repository passed to NewSubscriptionHandler")
	}
	return &SubscriptionHandler{Subs: subs, Summaries: summaries}
}

type createSubscriptionRequest struct {
	ID                     string   `json:"id"`
	State                  string   `json:"state"`
	TotalSeats             *int     `json:"total_seats"`
	IsBeingConfigured      bool     `json:"is_being_configured"`
	Strategy               string   `json:"strategy"`
	DefaultSeatExpiryDays  *int     `json:"default_seat_expiry_days"`
	ReservationExpiryDays  *int     `json:"reservation_expiry_days"`
	LimitedOverflowEnabled bool     `json:"limited_overflow_enabled"`
	LowSeatWarningLevel    *float64 `json:"low_seat_warning_level"`
	UserRoleName           *string  `json:"user_role_name"`
	AdminRoleName          *string  `json:"admin_role_name"`
}

// Create handles POST /v1/subscriptions.  The subscription is owned by
// the caller's tenant.  Missing fields default to a purchased
// subscription with the monthly active user strategy.
func (h *SubscriptionHandler) Create(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createSubscriptionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}
	if body.State == "" {
		body.State = model.StatePurchased
	}
	if !validState(body.State) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription state"})
	}
	if body.Strategy == "" {
		body.Strategy = model.StrategyMonthlyActiveUser
	}
	if !validStrategy(body.Strategy) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown seating strategy"})
	}
	if body.TotalSeats != nil && *body.TotalSeats < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must not be negative"})
	}

	sub := &model.Subscription{
		ID:                body.ID,
		TenantID:          req.TenantID,
		State:             body.State,
		TotalSeats:        body.TotalSeats,
		IsBeingConfigured: body.IsBeingConfigured,
		Seating: model.SeatingConfiguration{
			Strategy:               body.Strategy,
			DefaultSeatExpiryDays:  body.DefaultSeatExpiryDays,
			ReservationExpiryDays:  body.ReservationExpiryDays,
			LimitedOverflowEnabled: body.LimitedOverflowEnabled,
			LowSeatWarningLevel:    body.LowSeatWarningLevel,
		},
		UserRoleName:  body.UserRoleName,
		AdminRoleName: body.AdminRoleName,
	}
	if err := h.Subs.Create(c.Request().Context(), sub); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create subscription"})
	}
	created, err := h.Subs.Get(c.Request().Context(), sub.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load subscription"})
	}
	return c.JSON(http.StatusCreated, subscriptionJSON(created))
}

// Get handles GET /v1/subscriptions/:id.  It returns the subscription
// together with the cached seat counts.  This read is served through the
// response cache middleware; the counts are advisory and may lag the
// authoritative recount by one creation.
func (h *SubscriptionHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	sub, err := h.Subs.Get(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "subscription not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	summary, err := h.Summaries.Get(ctx, sub.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := subscriptionJSON(sub)
	out["seating_summary"] = echo.Map{
		"standard_seats": summary.StandardCount,
		"limited_seats":  summary.LimitedCount,
	}
	return c.JSON(http.StatusOK, out)
}

type patchSubscriptionRequest struct {
	State                  *string  `json:"state"`
	TotalSeats             *int     `json:"total_seats"`
	IsBeingConfigured      *bool    `json:"is_being_configured"`
	Strategy               *string  `json:"strategy"`
	DefaultSeatExpiryDays  *int     `json:"default_seat_expiry_days"`
	ReservationExpiryDays  *int     `json:"reservation_expiry_days"`
	LimitedOverflowEnabled *bool    `json:"limited_overflow_enabled"`
	LowSeatWarningLevel    *float64 `json:"low_seat_warning_level"`
	UserRoleName           *string  `json:"user_role_name"`
	AdminRoleName          *string  `json:"admin_role_name"`
}

// Patch handles PATCH /v1/subscriptions/:id.  Absent body fields leave
// the subscription unchanged.  Only an administrator of the owning
// tenant may patch.
func (h *SubscriptionHandler) Patch(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	sub, err := h.Subs.Get(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "subscription not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !canAdminister(sub, req) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var body patchSubscriptionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.State != nil && !validState(*body.State) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription state"})
	}
	if body.Strategy != nil && !validStrategy(*body.Strategy) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown seating strategy"})
	}
	if body.TotalSeats != nil && *body.TotalSeats < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must not be negative"})
	}

	patched, err := h.Subs.Patch(ctx, sub.ID, model.SubscriptionPatch{
		State:                  body.State,
		TotalSeats:             body.TotalSeats,
		IsBeingConfigured:      body.IsBeingConfigured,
		Strategy:               body.Strategy,
		DefaultSeatExpiryDays:  body.DefaultSeatExpiryDays,
		ReservationExpiryDays:  body.ReservationExpiryDays,
		LimitedOverflowEnabled: body.LimitedOverflowEnabled,
		LowSeatWarningLevel:    body.LowSeatWarningLevel,
		UserRoleName:           body.UserRoleName,
		AdminRoleName:          body.AdminRoleName,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update subscription"})
	}
	return c.JSON(http.StatusOK, subscriptionJSON(patched))
}
