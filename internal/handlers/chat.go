package handlers

import (
	"net/http"

	"studyforum/internal/apperr"
	"studyforum/internal/logger"
	"studyforum/internal/services"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	relay      *services.ChatRelay
	summarizer *services.Summarizer
	log        *logger.Logger
}

func NewChatHandler(relay *services.ChatRelay, summarizer *services.Summarizer, log *logger.Logger) *ChatHandler {
	return &ChatHandler{relay: relay, summarizer: summarizer, log: log}
}

type chatRequest struct {
	Message        string `json:"message" binding:"required,max=8000"`
	ConversationID string `json:"conversationId"`
}

// sseStream 首个数据帧写出前不发送响应头，失败时仍可返回普通 JSON 错误
type sseStream struct {
	c       *gin.Context
	started bool
}

func (s *sseStream) start() {
	if s.started {
		return
	}
	h := s.c.Writer.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
	s.started = true
}

func (s *sseStream) send(data gin.H) error {
	s.start()
	if err := sse.Encode(s.c.Writer, sse.Event{Data: data}); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return s.c.Request.Context().Err()
}

// Send POST /api/chat，以 text/event-stream 返回
func (h *ChatHandler) Send(c *gin.Context) {
	var req chatRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	stream := &sseStream{c: c}
	sink := func(chunk string) error {
		return stream.send(gin.H{"chunk": chunk})
	}

	turn, err := h.relay.Send(c.Request.Context(), currentUserID(c), req.ConversationID, req.Message, sink)
	switch {
	case err == nil:
		_ = stream.send(gin.H{"done": true, "conversationId": turn.ConversationID, "messageId": turn.MessageID})
	case turn != nil:
		// 部分回复已保存，告知客户端流被截断
		_ = stream.send(gin.H{"error": apperr.Upstream(nil).Message, "conversationId": turn.ConversationID, "messageId": turn.MessageID})
	case !stream.started:
		RespondError(c, h.log, err)
	default:
		h.log.Error("Chat failed after streaming started", "error", err)
		_ = stream.send(gin.H{"error": "Internal server error"})
	}
}

func (h *ChatHandler) Conversations(c *gin.Context) {
	convs, err := h.relay.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *ChatHandler) Messages(c *gin.Context) {
	msgs, err := h.relay.Messages(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Summarize POST /api/posts/:id/summarize
func (h *ChatHandler) Summarize(c *gin.Context) {
	summary, err := h.summarizer.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
