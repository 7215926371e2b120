package middleware

// identity.go rebuilds the transient seat-requester identity from the
// claims JWTAuth stored on the context.  Handlers use Requester() instead
// of reading individual context keys.

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/subscription-seating/internal/model"
)

// ErrNoIdentity is returned when the context carries no authenticated
// requester, which means JWTAuth did not run or rejected the token.
var ErrNoIdentity = errors.New("no authenticated requester in context")

// Requester assembles a model.SeatRequester from the context claims.
func Requester(c echo.Context) (model.SeatRequester, error) {
	userID, _ := c.Get("user_id").(string)
	tenantID, _ := c.Get("tenant_id").(string)
	if userID == "" || tenantID == "" {
		return model.SeatRequester{}, ErrNoIdentity
	}
	req := model.SeatRequester{UserID: userID, TenantID: tenantID}
	if emails, ok := c.Get("emails").([]string); ok {
		req.Emails = emails
	}
	if roles, ok := c.Get("roles").([]string); ok {
		req.Roles = roles
	}
	if name, ok := c.Get("display_name").(string); ok && name != "" {
		req.DisplayName = &name
	}
	return req, nil
}
