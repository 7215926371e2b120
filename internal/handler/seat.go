package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/subscription-seating/internal/model"
	"github.com/iliyamo/subscription-seating/internal/repository"
	"github.com/iliyamo/subscription-seating/internal/seating"
)

// SeatHandler exposes the seat administration API: listing and inspecting
// seats, reserving seats for invited users, patching occupant contact
// fields and releasing seats.  Every endpoint requires administrative
// rights on the owning subscription.
type SeatHandler struct {
	Ledger *repository.Ledger
	Engine *seating.Engine
}

func NewSeatHandler(ledger *repository.Ledger, engine *seating.Engine) *SeatHandler {
	if ledger == nil || engine == nil {
		panic("nil dependency passed to NewSeatHandler")
	}
	return &SeatHandler{Ledger: ledger, Engine: engine}
}

// loadForAdmin fetches the subscription and checks the caller may
// administer it.  On failure the response has already been written and
// the returned subscription is nil.
func (h *SeatHandler) loadForAdmin(c echo.Context) (*model.Subscription, error) {
	req, ok := requester(c)
	if !ok {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sub, err := h.Ledger.GetSubscription(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "subscription not found"})
	}
	if err != nil {
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !canAdminister(sub, req) {
		return nil, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return sub, nil
}

// List handles GET /v1/subscriptions/:id/seats.  Optional user_id and
// email query parameters narrow the result; both match occupant and
// reservation fields.
func (h *SeatHandler) List(c echo.Context) error {
	sub, err := h.loadForAdmin(c)
	if sub == nil {
		return err
	}
	seats, err := h.Ledger.ListSeats(c.Request().Context(), sub.ID, repository.SeatFilter{
		UserID: c.QueryParam("user_id"),
		Email:  c.QueryParam("email"),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(seats))
	for i := range seats {
		out = append(out, seatJSON(&seats[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": out})
}

// Get handles GET /v1/subscriptions/:id/seats/:seat_id.
func (h *SeatHandler) Get(c echo.Context) error {
	sub, err := h.loadForAdmin(c)
	if sub == nil {
		return err
	}
	seat, err := h.Ledger.GetSeat(c.Request().Context(), c.Param("seat_id"), sub.ID)
	if errors.Is(err, repository.ErrSeatNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, seatJSON(seat))
}

type reserveSeatRequest struct {
	UserID   *string `json:"user_id"`
	TenantID *string `json:"tenant_id"`
	Email    *string `json:"email"`
}

// Reserve handles POST /v1/subscriptions/:id/seats and
// POST /v1/subscriptions/:id/seats/:seat_id.  The reservation must name
// either a user id with its tenant or an email address.  Reserved seats
// consume standard capacity immediately.
func (h *SeatHandler) Reserve(c echo.Context) error {
	sub, err := h.loadForAdmin(c)
	if sub == nil {
		return err
	}
	var body reserveSeatRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	byUser := body.UserID != nil && *body.UserID != "" && body.TenantID != nil && *body.TenantID != ""
	byEmail := body.Email != nil && *body.Email != ""
	if !byUser && !byEmail {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation requires user_id with tenant_id, or email"})
	}
	seatID := c.Param("seat_id")
	if seatID == "" {
		seatID = uuid.NewString()
	}

	created, err := h.Engine.Reserve(c.Request().Context(), sub, seatID, model.Reservation{
		UserID:   body.UserID,
		TenantID: body.TenantID,
		Email:    body.Email,
	})
	if errors.Is(err, repository.ErrDuplicateSeat) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat id already in use"})
	}
	if err != nil {
		log.Printf("seats: reserve %s in subscription %s: %v", seatID, sub.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve seat"})
	}
	if !created.Created {
		return c.JSON(http.StatusConflict, echo.Map{"error": "no seats available"})
	}
	return c.JSON(http.StatusCreated, seatJSON(created.Seat))
}

type patchOccupantRequest struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
}

// PatchOccupant handles PATCH /v1/subscriptions/:id/seats/:seat_id/occupant.
// Only the contact fields of an occupied seat may change; identity and
// lifecycle fields are owned by the admission flow.
func (h *SeatHandler) PatchOccupant(c echo.Context) error {
	sub, err := h.loadForAdmin(c)
	if sub == nil {
		return err
	}
	var body patchOccupantRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	seat, err := h.Ledger.GetSeat(ctx, c.Param("seat_id"), sub.ID)
	if errors.Is(err, repository.ErrSeatNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !seat.Occupied() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat is not occupied"})
	}
	if body.Email != nil {
		seat.Occupant.Email = body.Email
	}
	if body.DisplayName != nil {
		seat.Occupant.DisplayName = body.DisplayName
	}
	if err := h.Ledger.Seats.Replace(ctx, seat); err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update seat"})
	}
	return c.JSON(http.StatusOK, seatJSON(seat))
}

// Delete handles DELETE /v1/subscriptions/:id/seats/:seat_id.  Deleting
// an absent seat still succeeds; the response is 204 either way.
func (h *SeatHandler) Delete(c echo.Context) error {
	sub, err := h.loadForAdmin(c)
	if sub == nil {
		return err
	}
	if err := h.Engine.Release(c.Request().Context(), sub, c.Param("seat_id")); err != nil {
		log.Printf("seats: release %s in subscription %s: %v", c.Param("seat_id"), sub.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seat"})
	}
	return c.NoContent(http.StatusNoContent)
}
