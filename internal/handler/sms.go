package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"hoops-sms/internal/classify"
	"hoops-sms/internal/engine"
	"hoops-sms/internal/notify"
)

// SMSHandler processes one inbound message end to end: resolve the sender,
// classify the text, run the engine, fan out the notifications.
type SMSHandler struct {
	classifier *classify.Classifier
	engine     *engine.Engine
	dispatcher *notify.Dispatcher
	log        zerolog.Logger
}

func New(classifier *classify.Classifier, eng *engine.Engine, dispatcher *notify.Dispatcher, log zerolog.Logger) *SMSHandler {
	return &SMSHandler{
		classifier: classifier,
		engine:     eng,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "handler").Logger(),
	}
}

// HandleMessage returns the reply to send back to the sender. An empty
// reply with a nil error means the message warrants no response: unknown
// senders and unrecognized input are dropped silently.
func (h *SMSHandler) HandleMessage(ctx context.Context, senderPhone, body string) (string, error) {
	member, err := h.engine.ResolveMember(ctx, senderPhone)
	if err != nil {
		if errors.Is(err, engine.ErrMemberNotFound) {
			h.log.Debug().Str("phone", senderPhone).Msg("Message from unknown number ignored")
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve sender: %w", err)
	}

	intent, err := h.classifier.Classify(ctx, senderPhone, body)
	if err != nil {
		return "", fmt.Errorf("failed to classify message: %w", err)
	}

	reply, notifications, err := h.engine.Execute(ctx, member, intent)
	if err != nil {
		return "", fmt.Errorf("failed to execute intent: %w", err)
	}

	if failed := h.dispatcher.Dispatch(ctx, notifications); failed > 0 {
		h.log.Warn().Int("failed", failed).Msg("Some notifications were not delivered")
	}

	h.log.Info().
		Str("member", member.Name).
		Stringer("intent", intent.Kind).
		Bool("replied", reply != "").
		Msg("Message handled")
	return reply, nil
}
