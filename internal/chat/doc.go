// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives one prompt/response turn at a time.
//
// A Session sits between the user-facing surfaces (TUI, REPL, one-shot
// CLI) and the store and gateway. Submit records the user message, adds a
// streaming assistant placeholder, streams the response into it and
// finalises it exactly once, whatever the outcome.
//
// # Usage
//
//	sess := chat.NewSession(st, completer, chat.Options{Logger: logger})
//	turn, err := sess.Submit(ctx, chat.Prompt{Text: "Explain recursion in five words"})
//	if err != nil {
//	    return err
//	}
//	res := turn.Wait()
//	fmt.Println(res.Content)
package chat
