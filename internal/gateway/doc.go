// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway talks to hosted AI completion services.
//
// A Completer turns a Request into a sequence of text chunks. Start wraps a
// Completer call in a cancellable Stream that reports exactly one terminal
// Result: completed, stopped or failed.
//
// # Backends
//
//   - OpenAI: any OpenAI-compatible endpoint (OpenAI, OpenRouter, Ollama /v1)
//   - Anthropic: the Messages API with base64 image blocks
//
// # Usage
//
//	c, err := gateway.New(gateway.Config{Provider: "openai", APIKey: key, Model: "gpt-4o-mini"})
//	if err != nil {
//	    return err
//	}
//	s := gateway.Start(ctx, c, gateway.Request{Prompt: "Hello"}, func(chunk string) {
//	    fmt.Print(chunk)
//	})
//	res := s.Wait()
//	switch res.Outcome {
//	case gateway.OutcomeCompleted, gateway.OutcomeStopped, gateway.OutcomeFailed:
//	}
package gateway
