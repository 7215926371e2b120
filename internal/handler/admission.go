package handler

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/subscription-seating/internal/seating"
)

// AdmissionHandler exposes the seating gate: one endpoint that decides
// whether the authenticated user may enter the subscribed product and
// which seat they hold.  All identity comes from the validated JWT; the
// request body is empty.
type AdmissionHandler struct {
	Engine *seating.Engine
}

// NewAdmissionHandler constructs an AdmissionHandler.  The engine must be
// non-nil.
func NewAdmissionHandler(engine *seating.Engine) *AdmissionHandler {
	if engine == nil {
		panic("nil engine passed to NewAdmissionHandler")
	}
	return &AdmissionHandler{Engine: engine}
}

// Enter handles POST /v1/subscriptions/:id/entry.  The response always
// carries the admission result code; a provided seat is returned with
// 200, every deny reason with 403 except an unknown subscription, which
// is 404.  Engine errors are infrastructure or configuration failures
// and surface as 500.
func (h *AdmissionHandler) Enter(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	subscriptionID := c.Param("id")
	if subscriptionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription id"})
	}

	result, err := h.Engine.Admit(c.Request().Context(), subscriptionID, req)
	if err != nil {
		log.Printf("admission: subscription %s user %s: %v", subscriptionID, req.UserID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "admission failed"})
	}

	switch result.Code {
	case seating.ResultSeatProvided:
		return c.JSON(http.StatusOK, echo.Map{
			"result": result.Code,
			"seat":   seatJSON(result.Seat),
		})
	case seating.ResultSubscriptionNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"result": result.Code})
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"result": result.Code})
	}
}
