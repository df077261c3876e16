// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations.go - list, show, export and delete saved conversations.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/storage"
	"github.com/jeranaias/rigrun-chat/internal/store"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// resolveConversation finds a conversation by 1-based list number, full id
// or unique id prefix.
func resolveConversation(st *store.Store, ref string) (*model.Conversation, error) {
	ref = strings.TrimSpace(ref)
	convs := st.Snapshot().Conversations

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return nil, ErrNotFound("conversation", ref)
		}
		return convs[n-1], nil
	}

	var match *model.Conversation
	for _, c := range convs {
		if c.ID == ref {
			return c, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			if match != nil {
				return nil, usageErrorf("conversation id prefix %q is ambiguous", ref)
			}
			match = c
		}
	}
	if match == nil {
		return nil, ErrNotFound("conversation", ref)
	}
	return match, nil
}

// openConversations wires storage and loads the saved conversations.
func openConversations(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := wire(ctx, cfg, stderrLogger(cfg), wireOptions{})
	if err != nil {
		return nil, err
	}
	a.hydrate(ctx)
	if err := a.requireUser(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// =============================================================================
// LIST
// =============================================================================

type listCommander struct {
	opts    *globalOptions
	jsonOut bool
}

func newListCmd(opts *globalOptions) *cobra.Command {
	cmder := &listCommander{opts: opts}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output as JSON")
	return cmd
}

func (c *listCommander) run(ctx context.Context, w io.Writer) error {
	a, err := openConversations(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	convs := a.store.Snapshot().Conversations
	metas := make([]model.ConversationMeta, 0, len(convs))
	for _, conv := range convs {
		metas = append(metas, conv.GetMeta())
	}

	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(metas)
	}
	fmt.Fprintln(w, storage.FormatConversationList(metas))
	return nil
}

// =============================================================================
// SHOW
// =============================================================================

func newShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number|id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConversations(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := resolveConversation(a.store, args[0])
			if err != nil {
				return err
			}
			printConversation(cmd.OutOrStdout(), conv)
			return nil
		},
	}
}

// printConversation writes a conversation as labelled plain text.
func printConversation(w io.Writer, conv *model.Conversation) {
	fmt.Fprintln(w, TitleStyle.Render(conv.GetTitle()))
	for _, msg := range conv.Messages {
		fmt.Fprintf(w, "%s %s\n", PromptStyle.Render(msg.Role.DisplayName()+":"),
			DimStyle.Render(msg.Timestamp.Format("2006-01-02 15:04")))
		for _, img := range msg.Images {
			fmt.Fprintln(w, DimStyle.Render("[image] "+img))
		}
		fmt.Fprintln(w, msg.Content)
		fmt.Fprintln(w)
	}
}

// =============================================================================
// EXPORT
// =============================================================================

type exportCommander struct {
	opts   *globalOptions
	format string
	output string
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	cmder := &exportCommander{opts: opts}
	cmd := &cobra.Command{
		Use:   "export <number|id>",
		Short: "Export a conversation as Markdown, JSON or YAML",
		Long: `Export a conversation as Markdown, JSON or YAML.

Examples:
  rigchat export 1
  rigchat export 1 --format json
  rigchat export conv_3f2a --format yaml --output chat.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().StringVarP(&cmder.format, "format", "f", storage.FormatMarkdown,
		"Output format: "+strings.Join(storage.ExportFormats, ", "))
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func (c *exportCommander) run(ctx context.Context, w io.Writer, ref string) error {
	a, err := openConversations(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := resolveConversation(a.store, ref)
	if err != nil {
		return err
	}
	data, err := storage.Export(conv, c.format)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	if c.output == "" {
		_, err := w.Write(data)
		return err
	}
	if err := util.AtomicWriteFile(c.output, data, 0600); err != nil {
		return fmt.Errorf("could not write %s: %w", c.output, err)
	}
	fmt.Fprintf(w, "%s Exported %q to %s\n", SuccessStyle.Render("[OK]"), conv.GetTitle(), c.output)
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

type deleteCommander struct {
	opts *globalOptions
	yes  bool
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	cmder := &deleteCommander{opts: opts}
	cmd := &cobra.Command{
		Use:     "delete <number|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}
	cmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func (c *deleteCommander) run(ctx context.Context, cmd *cobra.Command, ref string) error {
	a, err := openConversations(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := resolveConversation(a.store, ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !c.yes {
		fmt.Fprintf(out, "Delete %q (%d messages)? [y/N] ", conv.GetTitle(), len(conv.Messages))
		answer, err := readLine(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := a.store.Delete(conv.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Deleted %q\n", SuccessStyle.Render("[OK]"), conv.GetTitle())
	return nil
}
