// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// Anthropic streams completions from the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	cfg    Config
	logger *zap.Logger
}

// NewAnthropic creates a backend from cfg.
func NewAnthropic(cfg Config) *Anthropic {
	cfg = cfg.withDefaults()
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.HTTPClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		logger: cfg.Logger.Named("anthropic"),
	}
}

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, req Request, emit EmitFunc) error {
	messages, err := a.buildMessages(ctx, req)
	if err != nil {
		return err
	}

	params := anthropic.MessageNewParams{
		Model:     firstNonEmpty(req.Model, a.cfg.Model),
		MaxTokens: int64(firstPositive(req.MaxTokens, a.cfg.MaxTokens)),
		Messages:  messages,
	}
	if a.cfg.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: a.cfg.SystemPrompt},
		}
	}
	a.logger.Debug("starting stream",
		zap.String("model", params.Model),
		zap.Int("messages", len(messages)),
		zap.Bool("images", req.HasImages()))

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" {
			emit(event.Delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return a.mapError(err)
	}
	return nil
}

func (a *Anthropic) buildMessages(ctx context.Context, req Request) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, turn := range req.History {
		if turn.Content == "" {
			continue
		}
		if turn.Role == model.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		} else {
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	var blocks []anthropic.ContentBlockParamUnion
	for _, ref := range req.Images {
		img, err := fetchImage(ctx, a.cfg.HTTPClient, ref)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			img.MediaType,
			base64.StdEncoding.EncodeToString(img.Data),
		))
	}
	if req.Prompt != "" {
		blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("anthropic: empty prompt")
	}
	result = append(result, anthropic.NewUserMessage(blocks...))
	return result, nil
}

// mapError converts SDK errors to the package's sentinel errors.
func (a *Anthropic) mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderAnthropic, apiErr.StatusCode, apiErr.Error())
	}
	return fmt.Errorf("anthropic stream: %w", err)
}
