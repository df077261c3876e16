// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/gateway"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

func newModelsCmd(opts *globalOptions) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known models per provider",
		Long: `List known models per provider.

Any model id the provider accepts can be set with
  rigchat config set gateway.model <id>
this list only covers the common ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			current := cfg.Gateway.Model
			if current == "" {
				current = model.DefaultModel(cfg.Gateway.Provider)
			}

			providers := gateway.Providers
			if provider != "" {
				providers = []string{strings.ToLower(provider)}
			}

			out := cmd.OutOrStdout()
			for _, p := range providers {
				models := model.GetModelsByProvider(p)
				if len(models) == 0 {
					continue
				}
				fmt.Fprintln(out, TitleStyle.Render(p))
				for _, m := range models {
					marker := "  "
					if p == cfg.Gateway.Provider && m.ID == current {
						marker = SuccessStyle.Render("* ")
					}
					fmt.Fprintf(out, "%s%s %s %s\n", marker,
						util.PadRight(m.ID, 32), util.PadRight(m.Name, 22), DimStyle.Render(m.CapabilitiesString()))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Only list this provider")
	return cmd
}
