package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/webhook"
	echo "github.com/labstack/echo/v5"
)

// webhookHandler receives checkout webhook callbacks. A paid checkout
// session upgrades its subscription to supporter access via the same
// internal-command path the process manager uses, so the upgrade goes
// through ordinary authorization and validation rather than writing
// aggregate state directly.
func (s *Server) webhookHandler(c *echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read request body")
	}

	event, err := s.webhookVerifier.VerifyAndParse(body, c.Request().Header.Get("stripe-signature"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch e := event.(type) {
	case webhook.CheckoutSessionCompleted:
		cmd := domain.UpdateAccessLevelCmd{
			SubscriptionID: e.SubscriptionID,
			AccessLevel:    domain.AccessSupporter,
		}
		if err := s.host.IssueInternalCommand(c.Request().Context(), e.LabourID, cmd); err != nil {
			slog.Error("api: checkout upgrade failed", "labour_id", e.LabourID, "subscription_id", e.SubscriptionID, "error", err)
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not apply checkout upgrade")
		}
	case webhook.CheckoutSessionUnpaid:
		slog.Info("api: ignoring unpaid checkout session", "session_id", e.SessionID)
	case webhook.Ignored:
		slog.Debug("api: ignoring webhook event", "event_type", e.EventType)
	}

	return c.NoContent(http.StatusOK)
}
