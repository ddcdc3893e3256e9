package controllers

import (
	"errors"
	"net/http"

	"github.com/flowbaker/tgbridge/internal/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog/log"
)

// SecretTokenHeader is the header Telegram echoes the webhook secret in.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// ListenerController exposes registration, revocation, dispatch and bot listing over HTTP.
// Parameter names match the ones flow functions already send.
type ListenerController struct {
	registrar     domain.WebhookRegistrar
	resolver      domain.EventResolver
	connectedBots domain.ConnectedBotsQuery
}

type ListenerControllerDependencies struct {
	WebhookRegistrar   domain.WebhookRegistrar
	EventResolver      domain.EventResolver
	ConnectedBotsQuery domain.ConnectedBotsQuery
}

func NewListenerController(deps ListenerControllerDependencies) *ListenerController {
	return &ListenerController{
		registrar:     deps.WebhookRegistrar,
		resolver:      deps.EventResolver,
		connectedBots: deps.ConnectedBotsQuery,
	}
}

// Listen registers the bot in `token` for the flow in the path
func (c *ListenerController) Listen(ctx fiber.Ctx) error {
	err := c.registrar.Register(ctx.RequestCtx(), domain.RegisterParams{
		SubscriberID: ctx.Params("flows_user"),
		FlowID:       ctx.Params("flow_id"),
		Credential:   value(ctx, "token"),
		HandlerRef:   value(ctx, "handler_fn"),
	})
	if err != nil {
		return toHTTPError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{})
}

// Revoke always acknowledges with "ok" once the input is valid
func (c *ListenerController) Revoke(ctx fiber.Ctx) error {
	err := c.registrar.Revoke(ctx.RequestCtx(), domain.RevokeParams{
		SubscriberID: ctx.Params("flows_user"),
		FlowID:       ctx.Params("flow_id"),
		Credential:   value(ctx, "token"),
	})
	if err != nil {
		return toHTTPError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).SendString("ok")
}

// Event resolves the routing token in the path to the flows listening on its bot
func (c *ListenerController) Event(ctx fiber.Ctx) error {
	return c.resolve(ctx, ctx.Params("token"))
}

// WebhookEvent resolves the routing token Telegram sends in the secret token header
func (c *ListenerController) WebhookEvent(ctx fiber.Ctx) error {
	return c.resolve(ctx, ctx.Get(SecretTokenHeader))
}

func (c *ListenerController) resolve(ctx fiber.Ctx, token string) error {
	subscribers, err := c.resolver.Resolve(ctx.RequestCtx(), token)
	if err != nil {
		return toHTTPError(ctx, err)
	}

	return ctx.JSON(subscribers)
}

func (c *ListenerController) ConnectedBots(ctx fiber.Ctx) error {
	bots, err := c.connectedBots.ListConnectedBots(ctx.RequestCtx(), ctx.Params("flows_user"))
	if err != nil {
		return toHTTPError(ctx, err)
	}

	return ctx.JSON(bots)
}

// value reads a parameter from the query string, falling back to a form body.
func value(ctx fiber.Ctx, key string) string {
	if v := ctx.Query(key); v != "" {
		return v
	}

	return ctx.FormValue(key)
}

func toHTTPError(ctx fiber.Ctx, err error) error {
	status, message := StatusFor(err)

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", ctx.Path()).
			Str("request_id", requestid.FromContext(ctx)).
			Msg("Request failed")
	}

	return fiber.NewError(status, message)
}

// StatusFor maps domain errors to the status code and body returned to callers.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, "Bad request"
	case errors.Is(err, domain.ErrUpstreamRejected):
		return fiber.StatusBadRequest, "invalid token"
	case errors.Is(err, domain.ErrDecode):
		return fiber.StatusBadRequest, "Malformed token"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "No flow binding with the address"
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}
