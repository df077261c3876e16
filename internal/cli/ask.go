// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/chat"
)

const askLongDesc = `Send one prompt and stream the response to stdout.

The prompt is taken from the arguments, or from stdin when no arguments are
given. The exchange is saved like any other conversation: by default it
continues the most recent conversation; use --new to start a fresh one.

Examples:
  rigchat ask "Explain recursion in five words"
  rigchat ask --new --image chart.png "Summarize this chart"
  git diff | rigchat ask --conversation 2
  rigchat ask --json "What is 2+2?"`

const askShortDesc = "Send one prompt and print the response"

type askCommander struct {
	opts         *globalOptions
	images       []string
	newChat      bool
	conversation string
	jsonOut      bool
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	cmder := &askCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: askShortDesc,
		Long:  askLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringArrayVarP(&cmder.images, "image", "i", nil, "Attach an image file (repeatable)")
	cmd.Flags().BoolVarP(&cmder.newChat, "new", "n", false, "Start a new conversation")
	cmd.Flags().StringVarP(&cmder.conversation, "conversation", "C", "", "Continue a conversation by list number or id")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the result as JSON instead of streaming text")

	return cmd
}

// askResult is the --json output.
type askResult struct {
	ConversationID string   `json:"conversation_id"`
	Prompt         string   `json:"prompt"`
	Images         []string `json:"images,omitempty"`
	Response       string   `json:"response"`
	Outcome        string   `json:"outcome"`
	Error          string   `json:"error,omitempty"`
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	if c.newChat && c.conversation != "" {
		return usageErrorf("--new and --conversation cannot be combined")
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && !IsTTY() {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" && len(c.images) == 0 {
		return usageErrorf("nothing to send: give a prompt or at least one --image")
	}

	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := wire(ctx, cfg, stderrLogger(cfg), wireOptions{session: true})
	if err != nil {
		return err
	}
	defer a.Close()

	a.hydrate(ctx)
	if err := a.requireUser(); err != nil {
		return err
	}

	switch {
	case c.newChat:
		if _, err := a.store.Create(); err != nil {
			return err
		}
	case c.conversation != "":
		conv, err := resolveConversation(a.store, c.conversation)
		if err != nil {
			return err
		}
		if err := a.store.Select(conv.ID); err != nil {
			return err
		}
	}

	images, err := attachAll(ctx, a, c.images)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		out = io.Discard
	}
	res, err := runTurn(ctx, a, out, chat.Prompt{Text: prompt, Images: images})
	if err != nil {
		return err
	}
	if c.jsonOut {
		r := askResult{
			Prompt:   prompt,
			Images:   images,
			Response: res.Content,
			Outcome:  res.Outcome.String(),
		}
		if active := a.store.Active(); active != nil {
			r.ConversationID = active.ID
		}
		if res.Err != nil {
			r.Error = res.Err.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return turnError(res)
}
