package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/caduceus-ai/caduceus/internal/log"
	"github.com/caduceus-ai/caduceus/internal/rag"
)

const (
	// placeholderContent is stored on the assistant message until
	// generation finishes.
	placeholderContent = "Your request is being processed..."

	// fallbackContent replaces the placeholder when generation fails.
	fallbackContent = "An error occurred while processing your request. Please try again."

	// titleLimit caps a chat title derived from the first message.
	titleLimit = 50

	// responseTimeout bounds one background generation, covering the
	// query embedding and the completion call.
	responseTimeout = 5 * time.Minute

	// defaultTemperature is used for background answer generation.
	defaultTemperature = 0.1
)

// Answerer produces a grounded answer for a question.
type Answerer interface {
	Answer(ctx context.Context, query string, patient *rag.PatientContext, temperature float32) (*rag.Answer, error)
}

// Responder accepts chat questions and fills in assistant replies from a
// background goroutine. Submit returns as soon as both messages are
// stored; the caller polls the chat for the finished answer. In-flight
// generations are never cancelled by the submitting request, only bounded
// by their own timeout.
type Responder struct {
	store    *Store
	answerer Answerer
	logger   log.Logger
	wg       sync.WaitGroup
}

// NewResponder wires a Responder over the chat store and answering
// pipeline.
func NewResponder(store *Store, answerer Answerer, logger log.Logger) *Responder {
	return &Responder{store: store, answerer: answerer, logger: logger}
}

// Submit stores the user's question and an assistant placeholder, then
// starts answer generation in the background. The returned message is the
// placeholder whose content will be overwritten with either the answer or
// a fallback failure notice.
func (r *Responder) Submit(ctx context.Context, chatID, question string) (*Message, error) {
	chat, err := r.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if _, err := r.store.AppendMessage(ctx, chatID, RoleUser, question); err != nil {
		return nil, err
	}

	// A chat still carrying the default title takes its title from the
	// first question.
	if chat.Title == DefaultTitle {
		if err := r.store.RenameChat(ctx, chatID, deriveTitle(question)); err != nil {
			r.logger.Warn("chat title update failed", "chat_id", chatID, "error", err)
		}
	}

	placeholder, err := r.store.AppendMessage(ctx, chatID, RoleAssistant, placeholderContent)
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.respond(placeholder.ID, question)
	}()

	return placeholder, nil
}

// Close waits for all in-flight generations to finish writing their
// results.
func (r *Responder) Close() {
	r.wg.Wait()
}

// respond runs detached from the submitting request, with its own
// context.
func (r *Responder) respond(messageID, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), responseTimeout)
	defer cancel()

	answer, err := r.answerer.Answer(ctx, question, nil, defaultTemperature)
	if err != nil {
		r.logger.Error("answer generation failed", "message_id", messageID, "error", err)
		if err := r.store.CompleteMessage(ctx, messageID, fallbackContent, nil, nil); err != nil {
			r.logger.Error("fallback write failed", "message_id", messageID, "error", err)
		}
		return
	}

	if err := r.store.CompleteMessage(ctx, messageID, answer.Text, answer.Sources, nil); err != nil {
		r.logger.Error("answer write failed", "message_id", messageID, "error", err)
		return
	}

	r.logger.Info("assistant reply generated",
		"message_id", messageID, "sources", len(answer.Sources), "tokens_used", answer.TokensUsed)
}

func deriveTitle(question string) string {
	title := strings.TrimSpace(question)
	if runes := []rune(title); len(runes) > titleLimit {
		title = string(runes[:titleLimit]) + "..."
	}
	if title == "" {
		return DefaultTitle
	}
	return title
}
