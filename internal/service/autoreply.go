package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/sunobot/wa-event-gateway/internal/domain/model"
	"github.com/sunobot/wa-event-gateway/internal/metrics"
)

// ReplyGenerator produces one reply for one inbound text.
type ReplyGenerator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// TextSender pushes an outbound text message through the provider.
type TextSender interface {
	SendText(ctx context.Context, instance, number, text string) error
}

// Replier decides whether an inbound message warrants an automated reply and,
// when it does, generates and sends one. Runs on the bus, never on the
// webhook response path.
type Replier interface {
	ProcessMessage(ctx context.Context, instance string, msg *model.Message) error
}

type AutoReplyService struct {
	generator ReplyGenerator
	sender    TextSender
	prompts   *PromptStore
	enabled   bool
}

func NewAutoReplyService(generator ReplyGenerator, sender TextSender, prompts *PromptStore, enabled bool) *AutoReplyService {
	return &AutoReplyService{
		generator: generator,
		sender:    sender,
		prompts:   prompts,
		enabled:   enabled,
	}
}

func (s *AutoReplyService) ProcessMessage(ctx context.Context, instance string, msg *model.Message) error {
	if !s.enabled {
		return nil
	}
	if msg == nil || msg.Key.FromMe {
		return nil
	}

	text := msg.Text()
	if !ShouldReply(text) {
		return nil
	}

	number := msg.PhoneNumber()
	if number == "" {
		return nil
	}

	reply, err := s.generator.Complete(ctx, s.prompts.Get(), text)
	if err != nil {
		metrics.AutoReplies.WithLabelValues("generate_error").Inc()
		return fmt.Errorf("auto-reply: generate: %w", err)
	}

	if err := s.sender.SendText(ctx, instance, number, reply); err != nil {
		metrics.AutoReplies.WithLabelValues("send_error").Inc()
		return fmt.Errorf("auto-reply: send: %w", err)
	}

	metrics.AutoReplies.WithLabelValues("sent").Inc()
	return nil
}

// ShouldReply filters out messages that must never trigger an automated
// answer: media-only messages, slash commands and bare numbers (menu picks
// and verification codes).
func ShouldReply(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if strings.HasPrefix(text, "/") {
		return false
	}
	digitsOnly := true
	for _, r := range text {
		if !unicode.IsDigit(r) {
			digitsOnly = false
			break
		}
	}
	return !digitsOnly
}
