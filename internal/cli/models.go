// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - List models available on the Ollama server.
package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/model"
)

// HandleModels handles the "models" command.
func HandleModels(args Args) error {
	cfg := config.Global()
	applyArgOverrides(cfg, args)

	client := newClientFromConfig(cfg)
	ctx := context.Background()

	if err := client.CheckRunning(ctx); err != nil {
		return err
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Println(historyMetaStyle.Render("no models installed, try: ollama pull qwen3:8b"))
		return nil
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	active := resolveModel(cfg, args, client)
	for _, m := range models {
		marker := "  "
		if m.Name == active {
			marker = historyIDStyle.Render("* ")
		}
		line := fmt.Sprintf("%s%-32s %8s", marker, m.Name, formatBytes(m.Size))
		if entry, ok := model.Lookup(m.Name); ok {
			line += historyMetaStyle.Render(fmt.Sprintf("  %s, %s",
				entry.ContextString(), entry.ReasoningLabel()))
		} else if m.Details.ParameterSize != "" {
			line += historyMetaStyle.Render("  " + m.Details.ParameterSize)
		}
		fmt.Println(line)
	}
	return nil
}
