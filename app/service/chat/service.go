// Package chat is the caller-facing surface: one call per farmer turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"agrosmi/app/config"
	"agrosmi/app/service/conversation"
	"agrosmi/app/service/history"
	"agrosmi/app/service/orchestrator"

	"github.com/samber/do"
)

const (
	WelcomeText = "¡Hola! Soy tu asistente Agrosmi. ¿En qué puedo ayudarte hoy?"

	maxTextLength = 4000
	maxImageSize  = 8 * 1024 * 1024
)

var ErrInvalidInput = errors.New("invalid input")

type Runner interface {
	Run(ctx context.Context, st *conversation.State) orchestrator.Result
}

type TurnReply struct {
	TurnID  string                 `json:"turn_id"`
	Reply   conversation.Message   `json:"reply"`
	History []conversation.Message `json:"history"`
}

type Service struct {
	runner       Runner
	store        history.Store
	historyLimit int
}

func NewService(runner Runner, store history.Store, historyLimit int) *Service {
	return &Service{
		runner:       runner,
		store:        store,
		historyLimit: historyLimit,
	}
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[*orchestrator.Controller](di),
		do.MustInvoke[history.Store](di),
		cfg.Orchestrator.HistoryLimit,
	), nil
}

// HandleTurn runs one farmer turn. Only invalid input is reported as an
// error; every other failure is already folded into the reply.
func (s *Service) HandleTurn(ctx context.Context, userID, text string, attachment *conversation.Attachment) (*TurnReply, error) {
	userID = strings.TrimSpace(userID)
	text = strings.TrimSpace(text)

	if err := validate(userID, text, attachment); err != nil {
		return nil, err
	}
	if attachment != nil {
		own := *attachment
		if own.MIMEType == "" {
			own.MIMEType = http.DetectContentType(own.Data)
		}
		attachment = &own
	}

	recent, err := s.store.LoadRecent(ctx, userID, s.historyLimit)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load history, continuing without it",
			"user_id", userID,
			"error", err,
		)
		recent = nil
	}

	st := conversation.NewState(userID, recent, text, attachment)
	res := s.runner.Run(ctx, st)

	visible := append(st.History(), visibleTurn(st)...)

	return &TurnReply{
		TurnID:  st.TurnID,
		Reply:   res.Reply,
		History: conversation.Trim(visible, s.historyLimit),
	}, nil
}

// visibleTurn keeps what the farmer sees of the turn: their own messages and
// the supervisor reply.
func visibleTurn(st *conversation.State) []conversation.Message {
	var result []conversation.Message
	for _, msg := range st.TurnMessages() {
		if msg.FromUser() || msg.Sender == conversation.SenderSupervisor {
			result = append(result, msg)
		}
	}

	return result
}

// History returns the recent conversation. A user without history is greeted,
// and the greeting is persisted.
func (s *Service) History(ctx context.Context, userID string) ([]conversation.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	messages, err := s.store.LoadRecent(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(messages) > 0 {
		return messages, nil
	}

	welcome := conversation.NewMessage(conversation.SenderSupervisor, conversation.Text(WelcomeText))
	if err = s.store.Append(ctx, userID, welcome); err != nil {
		return nil, fmt.Errorf("failed to persist welcome message: %w", err)
	}

	return []conversation.Message{welcome}, nil
}

func validate(userID, text string, attachment *conversation.Attachment) error {
	hasImage := attachment != nil && len(attachment.Data) > 0

	switch {
	case userID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	case text == "" && !hasImage:
		return fmt.Errorf("%w: message or image is required", ErrInvalidInput)
	case utf8.RuneCountInString(text) > maxTextLength:
		return fmt.Errorf("%w: message longer than %d characters", ErrInvalidInput, maxTextLength)
	}

	if !hasImage {
		return nil
	}

	if len(attachment.Data) > maxImageSize {
		return fmt.Errorf("%w: image larger than %d bytes", ErrInvalidInput, maxImageSize)
	}

	mimeType := attachment.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(attachment.Data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("%w: unsupported attachment type %s", ErrInvalidInput, mimeType)
	}

	return nil
}
