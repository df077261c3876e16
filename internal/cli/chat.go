// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode interactive chat for terminals where the full-screen
// UI is unwanted (SSH sessions, screen readers, logs).

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/config"
)

const chatLongDesc = `Chat line by line in the terminal.

Press Ctrl+C while a response streams to stop it. Ctrl+D or /quit exits.

Commands:
  /new              start a new conversation
  /list             list conversations
  /switch <n|id>    continue another conversation
  /attach <path>    attach an image to the next message
  /regenerate       resend the last prompt
  /help             show this help
  /quit             exit`

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides history and line editing for the chat prompt.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *lineReader) readLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *lineReader) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

type chatCommander struct {
	opts         *globalOptions
	newChat      bool
	conversation string
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	cmder := &chatCommander{opts: opts}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive line-mode chat",
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&cmder.newChat, "new", "n", false, "Start a new conversation")
	cmd.Flags().StringVarP(&cmder.conversation, "conversation", "C", "", "Continue a conversation by list number or id")
	return cmd
}

func (c *chatCommander) run(ctx context.Context, out io.Writer) error {
	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}
	log := stderrLogger(cfg)
	a, err := wire(ctx, cfg, log, wireOptions{session: true})
	if err != nil {
		return err
	}
	defer a.Close()

	a.hydrate(ctx)
	if !a.auth.State().SignedIn() {
		if err := interactiveLogin(ctx, a, os.Stdin, out); err != nil {
			return err
		}
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

	repl := &chatREPL{app: a, out: out, logger: log}
	return repl.loop(ctx)
}

// =============================================================================
// REPL
// =============================================================================

type chatREPL struct {
	app     *app
	out     io.Writer
	logger  *zap.Logger
	pending []string
}

func (r *chatREPL) loop(ctx context.Context) error {
	// Interrupts stop the current response rather than the whole session.
	base := context.WithoutCancel(ctx)

	reader := newLineReader()
	defer reader.Close()

	if active := r.app.store.Active(); active != nil {
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render("Continuing:"), active.GetTitle())
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))

	for {
		input, err := reader.readLine("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(base, input)
			if err != nil {
				DisplayError(os.Stderr, err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.send(base, chat.Prompt{Text: input, Images: r.pending}); err != nil {
			DisplayError(os.Stderr, err)
			continue
		}
		r.pending = nil
	}
}

// send runs one turn, stopping it on Ctrl+C.
func (r *chatREPL) send(ctx context.Context, prompt chat.Prompt) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-turnCtx.Done():
		}
	}()

	fmt.Fprint(r.out, PromptStyle.Render("assistant> "))
	res, err := runTurn(turnCtx, r.app, r.out, prompt)
	if err != nil {
		fmt.Fprintln(r.out)
		return err
	}
	if err := turnError(res); err != nil {
		r.logger.Debug("turn failed", zap.Error(err))
	}
	return nil
}

// command handles a slash command and reports whether to exit.
func (r *chatREPL) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h", "/?":
		fmt.Fprintln(r.out, chatLongDesc)

	case "/new", "/n":
		if _, err := r.app.store.Create(); err != nil {
			return false, err
		}
		r.pending = nil
		fmt.Fprintln(r.out, DimStyle.Render("Started a new conversation."))

	case "/list", "/l":
		var b strings.Builder
		activeID := r.app.store.Snapshot().ActiveID
		for i, conv := range r.app.store.Snapshot().Conversations {
			marker := " "
			if conv.ID == activeID {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %2d. %s (%d)\n", marker, i+1, conv.GetTitle(), len(conv.Messages))
		}
		if b.Len() == 0 {
			b.WriteString("No conversations yet.\n")
		}
		fmt.Fprint(r.out, b.String())

	case "/switch", "/s":
		if arg == "" {
			return false, usageErrorf("usage: /switch <number|id>")
		}
		conv, err := resolveConversation(r.app.store, arg)
		if err != nil {
			return false, err
		}
		if err := r.app.store.Select(conv.ID); err != nil {
			return false, err
		}
		r.pending = nil
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render("Switched to:"), conv.GetTitle())

	case "/attach", "/a":
		if arg == "" {
			return false, usageErrorf("usage: /attach <path to image>")
		}
		urls, err := attachAll(ctx, r.app, []string{arg})
		if err != nil {
			return false, err
		}
		r.pending = append(r.pending, urls...)
		fmt.Fprintf(r.out, "%s %s (%d pending)\n", DimStyle.Render("Attached"), filepath.Base(arg), len(r.pending))

	case "/regenerate", "/r":
		active := r.app.store.Active()
		if active == nil || active.LastUserMessage() == nil {
			return false, chat.ErrNothingToRegenerate
		}
		last := active.LastUserMessage()
		return false, r.send(ctx, chat.Prompt{Text: last.Content, Images: last.Images})

	default:
		return false, usageErrorf("unknown command %s (try /help)", name)
	}
	return false, nil
}
