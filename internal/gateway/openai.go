// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// OpenAI streams completions from an OpenAI-compatible chat completions API.
type OpenAI struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewOpenAI creates a backend from cfg. The provider name is only used for
// error messages; BaseURL selects the endpoint.
func NewOpenAI(cfg Config) *OpenAI {
	cfg = cfg.withDefaults()
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = cfg.HTTPClient
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: cfg.Logger.Named("openai"),
	}
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, req Request, emit EmitFunc) error {
	messages, err := o.buildMessages(ctx, req)
	if err != nil {
		return err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     firstNonEmpty(req.Model, o.cfg.Model),
		MaxTokens: firstPositive(req.MaxTokens, o.cfg.MaxTokens),
		Messages:  messages,
		Stream:    true,
	}
	o.logger.Debug("starting stream",
		zap.String("model", chatReq.Model),
		zap.Int("messages", len(messages)),
		zap.Bool("images", req.HasImages()))

	stream, err := o.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return o.mapError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return o.mapError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		emit(choice.Delta.Content)
		if choice.FinishReason == openai.FinishReasonContentFilter {
			return fmt.Errorf("%w: response blocked by content filter", ErrContentPolicy)
		}
	}
}

func (o *OpenAI) buildMessages(ctx context.Context, req Request) ([]openai.ChatCompletionMessage, error) {
	var msgs []openai.ChatCompletionMessage
	if o.cfg.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: o.cfg.SystemPrompt,
		})
	}
	for _, turn := range req.History {
		// Earlier images are not resent; the text carries the context.
		if turn.Content == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		if turn.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	if !req.HasImages() {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
		return msgs, nil
	}

	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	if req.Prompt != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		})
	}
	for _, ref := range req.Images {
		imageURL := ref
		if !isRemoteURL(ref) {
			img, err := fetchImage(ctx, o.cfg.HTTPClient, ref)
			if err != nil {
				return nil, err
			}
			imageURL = img.dataURL()
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imageURL,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
	return msgs, nil
}

// mapError converts go-openai errors to the package's sentinel errors.
func (o *OpenAI) mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "content_policy_violation" {
			return fmt.Errorf("%w: %s", ErrContentPolicy, apiErr.Message)
		}
		return classifyStatus(o.cfg.Provider, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return classifyStatus(o.cfg.Provider, reqErr.HTTPStatusCode, msg)
	}

	return fmt.Errorf("%s stream: %w", o.cfg.Provider, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
