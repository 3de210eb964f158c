package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/repository"
	"github.com/nomance-app/nomance/pkg/validator"
	"github.com/pkg/errors"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidMessage  = errors.New("invalid message content")
)

// Notifier publishes row changes to realtime subscribers.
type Notifier interface {
	NotifyMessageInserted(msg *domain.Message)
	NotifyMessageUpdated(msg *domain.Message)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	matches     *MatchService
	notifier    Notifier
}

func NewMessageService(messageRepo repository.MessageRepository, matches *MatchService) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		matches:     matches,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	Content string     `json:"content"`
	Nonce   *uuid.UUID `json:"nonce,omitempty"`
}

type MarkReadInput struct {
	IDs []uuid.UUID `json:"ids,omitempty"`
}

// Send stores a message in an accepted match.
func (s *MessageService) Send(ctx context.Context, userID, matchID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	if errs := validator.ValidateMessage(input.Content); errs.HasErrors() {
		return nil, ErrInvalidMessage
	}
	if _, err := s.matches.CheckConversation(ctx, userID, matchID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        uuid.New(),
		MatchID:   matchID,
		SenderID:  userID,
		Content:   strings.TrimSpace(input.Content),
		Nonce:     input.Nonce,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, errors.Wrap(err, "creating message")
	}

	if s.notifier != nil {
		s.notifier.NotifyMessageInserted(msg)
	}

	return msg, nil
}

// List returns the full history of a match in creation order.
func (s *MessageService) List(ctx context.Context, userID, matchID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.matches.CheckConversation(ctx, userID, matchID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// MarkRead marks incoming unread messages of a match as read. Messages
// already read and the reader's own messages are left untouched.
func (s *MessageService) MarkRead(ctx context.Context, userID, matchID uuid.UUID, input MarkReadInput) ([]domain.Message, error) {
	if _, err := s.matches.CheckConversation(ctx, userID, matchID); err != nil {
		return nil, err
	}

	updated, err := s.messageRepo.MarkRead(ctx, matchID, userID, input.IDs)
	if err != nil {
		return nil, errors.Wrap(err, "marking messages read")
	}

	if s.notifier != nil {
		for i := range updated {
			s.notifier.NotifyMessageUpdated(&updated[i])
		}
	}

	if updated == nil {
		updated = []domain.Message{}
	}
	return updated, nil
}

// MarkMessageRead marks a single incoming message as read.
func (s *MessageService) MarkMessageRead(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID == userID || msg.ReadAt != nil {
		return nil
	}

	_, err = s.MarkRead(ctx, userID, msg.MatchID, MarkReadInput{IDs: []uuid.UUID{messageID}})
	return err
}
