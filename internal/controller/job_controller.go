package controller

import (
	"csv-dedupe-be/internal/service"
	internalWS "csv-dedupe-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IJobController interface {
	RegisterRoutes(r fiber.Router)
	Poll(ctx *fiber.Ctx) error
	AdjustThreshold(ctx *fiber.Ctx) error
	Watch(ctx *fiber.Ctx) error
}

type jobController struct {
	sessionService service.IDedupeSessionService
	hub            *internalWS.Hub
}

func NewJobController(sessionService service.IDedupeSessionService, hub *internalWS.Hub) IJobController {
	return &jobController{
		sessionService: sessionService,
		hub:            hub,
	}
}

func (c *jobController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/dedupe/v1")
	h.Get("job/:key", c.Poll)
	h.Get("job/:key/ws", c.Watch)
	h.Get("adjust-threshold", c.AdjustThreshold)
}

func (c *jobController) Poll(ctx *fiber.Ctx) error {
	res, err := c.sessionService.PollResult(ctx.Context(), ctx.Params("key"))
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *jobController) AdjustThreshold(ctx *fiber.Ctx) error {
	filename := ctx.Query("filename")
	if filename == "" {
		return service.ErrFileNotFound
	}
	recallWeight := ctx.QueryFloat("recall_weight", 1.0)

	res, err := c.sessionService.AdjustThreshold(ctx.Context(), filename, recallWeight)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

// Watch upgrades to a websocket and pushes the job's result envelope when the
// worker finishes, as an alternative to polling.
func (c *jobController) Watch(ctx *fiber.Ctx) error {
	jobKey := ctx.Params("key")
	if jobKey == "" {
		return fiber.ErrBadRequest
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(c.hub, conn, jobKey)
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}
