package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("studyforum/services")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider 聊天补全接口，CompleteStream 返回已收到的全部文本
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteStream(ctx context.Context, messages []Message, onChunk func(chunk string)) (string, error)
}

// ProviderError is a non-2xx answer from the provider. Body is kept for logs only.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, e.Body)
}

type ChatRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty"`
	Stream              bool      `json:"stream,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error json.RawMessage `json:"error,omitempty"`
}

type LLMConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// LLMService talks to an OpenAI-compatible /v1/chat/completions endpoint.
type LLMService struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewLLMService(cfg LLMConfig) *LLMService {
	return &LLMService{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		// 超时由调用方 context 控制，流式响应不能设置整体超时
		httpClient: &http.Client{Transport: http.DefaultTransport},
	}
}

func (s *LLMService) newRequest(ctx context.Context, body ChatRequest) (*http.Request, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

func (s *LLMService) do(ctx context.Context, body ChatRequest) (*http.Response, error) {
	req, err := s.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}

func (s *LLMService) startSpan(ctx context.Context, name string, messages []Message) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("llm.model", s.model),
		attribute.Int("llm.messages", len(messages)),
	))
}

func endSpan(span trace.Span, start time.Time, text string, err error) {
	span.SetAttributes(
		attribute.Int("llm.response_chars", len(text)),
		attribute.Int64("llm.duration_ms", time.Since(start).Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm request failed")
	}
	span.End()
}

// Complete 非流式补全，用于讨论摘要
func (s *LLMService) Complete(ctx context.Context, messages []Message) (text string, err error) {
	ctx, span := s.startSpan(ctx, "llm.complete", messages)
	start := time.Now()
	defer func() { endSpan(span, start, text, err) }()

	resp, err := s.do(ctx, ChatRequest{Model: s.model, Messages: messages, MaxCompletionTokens: s.maxTokens})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm decode error: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// ErrStreamIncomplete 上游流在 [DONE] 或 finish_reason 之前结束
var ErrStreamIncomplete = fmt.Errorf("llm stream ended early: %w", io.ErrUnexpectedEOF)

// CompleteStream forwards every non-empty delta to onChunk. On error the text
// received so far is returned alongside it. A stream that ends without [DONE]
// or a finish_reason fails with ErrStreamIncomplete.
func (s *LLMService) CompleteStream(ctx context.Context, messages []Message, onChunk func(chunk string)) (text string, err error) {
	ctx, span := s.startSpan(ctx, "llm.complete_stream", messages)
	start := time.Now()
	defer func() { endSpan(span, start, text, err) }()

	resp, err := s.do(ctx, ChatRequest{Model: s.model, Messages: messages, MaxCompletionTokens: s.maxTokens, Stream: true})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	finished := false
	err = readSSE(resp.Body, func(data string) error {
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			finished = true
			return nil
		}
		if data == "" {
			return nil
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
			return fmt.Errorf("llm stream error: %s", string(chunk.Error))
		}
		if len(chunk.Choices) == 0 {
			return nil
		}
		if d := chunk.Choices[0].Delta.Content; d != "" {
			full.WriteString(d)
			if onChunk != nil {
				onChunk(d)
			}
		}
		if fr := chunk.Choices[0].FinishReason; fr != nil && *fr != "" {
			finished = true
		}
		return nil
	})
	if err == nil && !finished {
		err = ErrStreamIncomplete
	}
	return full.String(), err
}

// readSSE 逐行解析 text/event-stream，每个事件回调一次 data 内容
func readSSE(r io.Reader, onData func(data string) error) error {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		return onData(data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if strings.HasPrefix(line, "data:") {
					dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
				}
				return flush()
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
