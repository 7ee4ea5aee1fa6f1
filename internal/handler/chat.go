package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/capitalize-ai/chatrelay/internal/apperr"
	"github.com/capitalize-ai/chatrelay/internal/middleware"
	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/service"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
	"github.com/capitalize-ai/chatrelay/pkg/metrics"
)

// ChatHandler handles the message exchange endpoints.
type ChatHandler struct {
	exchange    *service.ExchangeService
	logger      *logger.Logger
	development bool
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(exchange *service.ExchangeService, log *logger.Logger, development bool) *ChatHandler {
	return &ChatHandler{
		exchange:    exchange,
		logger:      log,
		development: development,
	}
}

// SendMessage handles POST /api/v1/chat/message
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.exchange.Exchange(ctx, identity, &req, nil)
	if err != nil {
		writeAppError(w, err, h.development)
		return
	}

	writeJSON(w, http.StatusOK, &model.SendMessageResponse{
		Conversation: model.ExchangeConversation{
			ID:       result.Conversation.ID,
			Title:    result.Conversation.Title,
			Messages: []model.Turn{*result.UserTurn, *result.AssistantTurn},
		},
		Usage:            result.Usage,
		CreditsRemaining: result.Credits,
	})
}

// StreamMessage handles POST /api/v1/chat/stream
//
// The response is a server-sent event stream: one conversation event,
// zero or more content events, then a single terminal complete or error
// event, after which the server closes the channel.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	emit := func(event model.StreamEvent) error {
		// A disconnected client aborts the exchange; the unsent assistant
		// turn is then discarded through the compensation path.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return sendSSEEvent(w, flusher, event)
	}

	result, err := h.exchange.Exchange(ctx, identity, &req, emit)
	if err != nil {
		data := model.ErrorEventData{
			Code:    string(apperr.KindOf(err)),
			Message: "failed to process message",
		}
		if appErr := apperr.As(err); appErr != nil {
			data.Message = appErr.Message
			if appErr.Kind == apperr.KindInsufficientCredits {
				remaining := appErr.Remaining
				data.CreditsRemaining = &remaining
			}
		}
		sendSSEEvent(w, flusher, model.StreamEvent{
			Type: model.EventError,
			Data: data,
		})
		return
	}

	sendSSEEvent(w, flusher, model.StreamEvent{
		Type: model.EventComplete,
		Data: model.CompleteEventData{
			AssistantTurn:    *result.AssistantTurn,
			Usage:            result.Usage,
			CreditsRemaining: result.Credits,
		},
	})
}

// sendSSEEvent writes one event to the stream in SSE framing, the JSON
// payload tagged by its event type.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event model.StreamEvent) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
	return nil
}
