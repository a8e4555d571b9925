package api

import (
	"errors"
	"net/http"

	"github.com/fernlabour/labour-actor/pkg/authz"
	"github.com/fernlabour/labour-actor/pkg/domain"
	echo "github.com/labstack/echo/v5"
)

// planLabourHandler handles POST /api/v1/labours: the one command route
// that creates an aggregate rather than acting on an existing one, so the
// aggregate ID comes from the command body (client-generated) rather than
// a URL path parameter.
func (s *Server) planLabourHandler(c *echo.Context) error {
	user, ok := userFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authenticated user")
	}

	var env CommandEnvelope
	if err := c.Bind(&env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cmd, err := decodeCommand(env.Type, env.Payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	plan, ok := cmd.(domain.PlanLabourCmd)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "expected a PlanLabour command")
	}

	principal, err := s.host.ResolvePrincipal(c.Request().Context(), plan.LabourID, user)
	if err != nil {
		return translateDomainError(err)
	}

	events, err := s.host.Dispatch(c.Request().Context(), plan.LabourID, principal, user.UserID, plan)
	if err != nil {
		return translateDomainError(err)
	}
	return c.JSON(http.StatusCreated, CommandResponse{Events: toEventEnvelopes(events)})
}

// commandHandler handles POST /api/v1/labours/:id/commands for every
// command except PlanLabour.
func (s *Server) commandHandler(c *echo.Context) error {
	user, ok := userFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authenticated user")
	}
	aggregateID := c.Param("id")
	if aggregateID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing labour id")
	}

	var env CommandEnvelope
	if err := c.Bind(&env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if env.Type == domain.CmdPlanLabour {
		return echo.NewHTTPError(http.StatusBadRequest, "use POST /api/v1/labours to plan a labour")
	}
	cmd, err := decodeCommand(env.Type, env.Payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Access requests default to the authenticated caller as the subscriber.
	if ra, ok := cmd.(domain.RequestAccessCmd); ok && ra.SubscriberID == "" {
		ra.SubscriberID = user.UserID
		cmd = ra
	}

	principal, err := s.host.ResolvePrincipal(c.Request().Context(), aggregateID, user)
	if err != nil {
		return translateDomainError(err)
	}

	events, err := s.host.Dispatch(c.Request().Context(), aggregateID, principal, user.UserID, cmd)
	if err != nil {
		return translateDomainError(err)
	}
	return c.JSON(http.StatusOK, CommandResponse{Events: toEventEnvelopes(events)})
}

// internalCommandHandler handles POST /api/v1/internal/labours/:id/commands:
// trusted-service callers (e.g. a notification worker reacting to its own
// effect) authenticated by internalServiceAuth rather than a bearer token,
// dispatching under the synthetic Internal principal for that service.
func (s *Server) internalCommandHandler(c *echo.Context) error {
	serviceID, _ := c.Get(ctxKeyServiceID).(string)
	if serviceID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing service id")
	}
	aggregateID := c.Param("id")
	if aggregateID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing labour id")
	}

	var env CommandEnvelope
	if err := c.Bind(&env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if env.Type == domain.CmdPlanLabour {
		return echo.NewHTTPError(http.StatusBadRequest, "internal callers cannot plan a labour")
	}
	cmd, err := decodeCommand(env.Type, env.Payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	principal := authz.InternalPrincipal(serviceID)
	events, err := s.host.Dispatch(c.Request().Context(), aggregateID, principal, serviceID, cmd)
	if err != nil {
		return translateDomainError(err)
	}
	return c.JSON(http.StatusOK, CommandResponse{Events: toEventEnvelopes(events)})
}

// queryLabourHandler handles GET /api/v1/labours/:id.
func (s *Server) queryLabourHandler(c *echo.Context) error {
	user, ok := userFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authenticated user")
	}
	aggregateID := c.Param("id")
	if aggregateID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing labour id")
	}

	principal, err := s.host.ResolvePrincipal(c.Request().Context(), aggregateID, user)
	if err != nil {
		return translateDomainError(err)
	}

	labour, err := s.host.Query(c.Request().Context(), aggregateID, principal, authz.Action{Kind: authz.ActionReadLabour})
	if err != nil {
		return translateDomainError(err)
	}
	if labour == nil {
		return echo.NewHTTPError(http.StatusNotFound, "labour not found")
	}
	return c.JSON(http.StatusOK, toLabourResponse(labour))
}

// translateDomainError maps the actor's sentinel errors (authz
// denials, domain validation failures) to HTTP status codes without
// leaking which branch of Authorize rejected the request, matching the
// authorizer's own "never reveal whether the aggregate exists" contract.
func translateDomainError(err error) error {
	var unauthorized *authz.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return echo.NewHTTPError(http.StatusForbidden, unauthorized.Error())
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
}
