package controller

import (
	"csv-dedupe-be/internal/dto"
	"csv-dedupe-be/internal/pkg/serverutils"
	"csv-dedupe-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	SelectFields(ctx *fiber.Ctx) error
	NextPair(ctx *fiber.Ctx) error
	MarkPair(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.IDedupeSessionService
}

func NewSessionController(sessionService service.IDedupeSessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/dedupe/v1")
	h.Post("session", c.Start)
	h.Post("session/:id/fields", c.SelectFields)
	h.Get("session/:id/pair", c.NextPair)
	h.Get("session/:id/mark", c.MarkPair)
}

func (c *sessionController) Start(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("input_file")
	if err != nil {
		return service.ErrUploadFailed
	}

	file, err := fileHeader.Open()
	if err != nil {
		return service.ErrUploadFailed
	}
	defer file.Close()

	res, err := c.sessionService.StartSession(ctx.Context(), fileHeader.Filename, file)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session started", res))
}

func (c *sessionController) SelectFields(ctx *fiber.Ctx) error {
	var req dto.SelectFieldsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return service.ErrNoFieldsSelected
	}

	res, err := c.sessionService.SelectFields(ctx.Context(), ctx.Params("id"), req.Fields)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Fields selected", res))
}

func (c *sessionController) NextPair(ctx *fiber.Ctx) error {
	res, err := c.sessionService.NextPair(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(res.Fields)
}

func (c *sessionController) MarkPair(ctx *fiber.Ctx) error {
	res, err := c.sessionService.MarkPair(ctx.Context(), ctx.Params("id"), ctx.Query("action"))
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}
