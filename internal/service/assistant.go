package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Utterances the assistant reacts to.
const (
	AskPrefix        = "/ask "
	RetrieveAnswer   = "답변 조회"
	MsgAssistantHelp = "안녕하세요! AI 챗봇입니다.\n'/ask 내용'으로 질문해주세요.\n이전에 요청한 답변은 '답변 조회'로 확인할 수 있습니다."
	MsgEmptyPrompt   = "질문 내용을 입력해주세요. 예: /ask 오늘 날씨 어때?"
	MsgNoAnswer      = "조회할 답변이 없거나 처리 시간이 만료되었습니다. 다시 요청해주세요."
	MsgAnswerFailed  = "답변 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgGenerating    = "답변 생성중입니다. \n잠시 후 아래 말풍선을 눌러 생성된 답변을 확인해주세요."
	MsgDisabled      = "AI 답변 기능이 현재 비활성화되어 있습니다."
)

// Completer produces a text answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicCompleter answers prompts with the Messages API.
type AnthropicCompleter struct {
	client       anthropic.Client
	model        string
	systemPrompt string
	maxTokens    int64
}

// NewAnthropicCompleter creates a completer. An empty baseURL uses the
// SDK default endpoint.
func NewAnthropicCompleter(apiKey, baseURL, model, systemPrompt string, maxTokens int64) *AnthropicCompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicCompleter{
		client:       anthropic.NewClient(opts...),
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
	}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.systemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty completion")
	}
	return sb.String(), nil
}

// AssistantReply is what the chat handler renders.
type AssistantReply struct {
	Text string
	// Pending means the answer is still being generated and can be
	// fetched later with RetrieveAnswer.
	Pending bool
}

// Assistant relays chat prompts to a language model. Answers that miss
// the reply budget are parked per user until they are retrieved or expire.
type Assistant struct {
	completer         Completer
	answers           *expirable.LRU[string, string]
	replyTimeout      time.Duration
	generationTimeout time.Duration
	metrics           *Metrics
	logger            *zap.Logger
}

// NewAssistant creates an Assistant. A nil completer turns every prompt
// into a "disabled" reply.
func NewAssistant(completer Completer, replyTimeout, generationTimeout, cacheTTL time.Duration, cacheSize int, metrics *Metrics, logger *zap.Logger) *Assistant {
	return &Assistant{
		completer:         completer,
		answers:           expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
		replyTimeout:      replyTimeout,
		generationTimeout: generationTimeout,
		metrics:           metrics,
		logger:            logger,
	}
}

// Handle answers one utterance from userID.
func (a *Assistant) Handle(ctx context.Context, userID, utterance string) AssistantReply {
	utterance = strings.TrimSpace(utterance)

	switch {
	case utterance == RetrieveAnswer:
		answer, ok := a.answers.Get(userID)
		if !ok {
			return AssistantReply{Text: MsgNoAnswer}
		}
		a.answers.Remove(userID)
		a.metrics.AssistantReplies.WithLabelValues("retrieved").Inc()
		return AssistantReply{Text: answer}

	case strings.HasPrefix(utterance+" ", AskPrefix):
		prompt := strings.TrimSpace(strings.TrimPrefix(utterance, strings.TrimSpace(AskPrefix)))
		if prompt == "" {
			return AssistantReply{Text: MsgEmptyPrompt}
		}
		if a.completer == nil {
			return AssistantReply{Text: MsgDisabled}
		}
		return a.ask(ctx, userID, prompt)

	default:
		return AssistantReply{Text: MsgAssistantHelp}
	}
}

type completion struct {
	text string
	err  error
}

func (a *Assistant) ask(ctx context.Context, userID, prompt string) AssistantReply {
	done := make(chan completion, 1)

	// Generation outlives the webhook request so a late answer can still be
	// parked for retrieval.
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.generationTimeout)
	go func() {
		defer cancel()
		text, err := a.completer.Complete(genCtx, prompt)
		if err != nil {
			a.logger.Error("Completion failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			a.answers.Add(userID, text)
		}
		done <- completion{text: text, err: err}
	}()

	timer := time.NewTimer(a.replyTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			a.metrics.AssistantReplies.WithLabelValues("failed").Inc()
			return AssistantReply{Text: MsgAnswerFailed}
		}
		a.answers.Remove(userID)
		a.metrics.AssistantReplies.WithLabelValues("answered").Inc()
		return AssistantReply{Text: res.text}
	case <-timer.C:
		a.metrics.AssistantReplies.WithLabelValues("deferred").Inc()
		return AssistantReply{Text: MsgGenerating, Pending: true}
	case <-ctx.Done():
		return AssistantReply{Text: MsgGenerating, Pending: true}
	}
}
