// Package api exposes the chat over HTTP.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"agrosmi/app/config"
	"agrosmi/app/service/chat"
	"agrosmi/app/service/conversation"
	"agrosmi/app/service/kpi"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

type ChatService interface {
	HandleTurn(ctx context.Context, userID, text string, attachment *conversation.Attachment) (*chat.TurnReply, error)
	History(ctx context.Context, userID string) ([]conversation.Message, error)
}

type SummaryProvider interface {
	Summary(userID string) kpi.Summary
}

type Server struct {
	app      *fiber.App
	listen   string
	chat     ChatService
	kpi      SummaryProvider
	validate *validator.Validate
}

type chatRequest struct {
	UserID      string `json:"user_id" validate:"required,max=128"`
	Message     string `json:"message" validate:"max=4000"`
	ImageBase64 string `json:"image_base64" validate:"omitempty,base64"`
	ImageMIME   string `json:"image_mime" validate:"omitempty,startswith=image/"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(listen string, bodyLimit int, chatSvc ChatService, summary SummaryProvider) *Server {
	s := &Server{
		listen:   listen,
		chat:     chatSvc,
		kpi:      summary,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "agrosmi",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	v1 := s.app.Group("/api/v1")
	v1.Post("/chat", s.handleChat)
	v1.Get("/chat/:user_id/history", s.handleHistory)
	v1.Get("/kpi/orchestration", s.handleSummary)

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	return s
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(
		cfg.HTTP.Listen,
		cfg.HTTP.BodyLimit,
		do.MustInvoke[*chat.Service](di),
		do.MustInvoke[*kpi.Service](di),
	), nil
}

// App is the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	slog.Info("HTTP server listening", "addr", s.listen)

	return s.app.Listen(s.listen)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var attachment *conversation.Attachment
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "image_base64 is not valid base64")
		}
		attachment = &conversation.Attachment{Data: data, MIMEType: req.ImageMIME}
	}

	start := time.Now()
	reply, err := s.chat.HandleTurn(c.UserContext(), req.UserID, req.Message, attachment)
	if err != nil {
		return err
	}

	slog.Info("Processed turn",
		"user_id", req.UserID,
		"turn_id", reply.TurnID,
		"has_image", attachment != nil,
		"duration", time.Since(start),
	)

	return c.JSON(reply)
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	messages, err := s.chat.History(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	return c.JSON(s.kpi.Summary(c.Query("user_id")))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	case errors.Is(err, chat.ErrInvalidInput):
		code = fiber.StatusBadRequest
		message = err.Error()
	default:
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(errorResponse{Error: message})
}
