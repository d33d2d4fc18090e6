// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the multi-round tool-calling loop for quill.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/quill-sh/quill/internal/ollama"
)

// =============================================================================
// TOOL INTERFACE
// =============================================================================

// Tool is a callable capability the model may request between rounds.
type Tool interface {
	// Spec returns the tool's schema as advertised to the model.
	Spec() ollama.Tool

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	Schema ollama.Tool
	Fn     func(ctx context.Context, args map[string]interface{}) (string, error)
}

func (t FuncTool) Spec() ollama.Tool { return t.Schema }

func (t FuncTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return t.Fn(ctx, args)
}

// =============================================================================
// REGISTRY
// =============================================================================

// ErrUnknownTool is returned when the model requests an unregistered tool.
var ErrUnknownTool = fmt.Errorf("unknown tool")

// Registry holds the tools available to the agent loop.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// DefaultRegistry returns a registry with the built-in read-only tools.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(readFileTool())
	r.Register(listDirTool())
	return r
}

// Register adds a tool. A tool with the same name replaces the previous one.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Spec().Function.Name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns all tool schemas for the chat request.
func (r *Registry) Specs() []ollama.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.tools) == 0 {
		return nil
	}
	specs := make([]ollama.Tool, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches a model-requested tool call.
func (r *Registry) Execute(ctx context.Context, call ollama.ToolCall) (string, error) {
	name := call.Function.Name
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool.Execute(ctx, call.Function.Arguments)
}

// =============================================================================
// BUILT-IN TOOLS (READ-ONLY)
// =============================================================================

const (
	// maxReadBytes caps how much file content a tool result may carry.
	maxReadBytes = 64 * 1024

	// maxReadLines caps the line count of a read_file result.
	maxReadLines = 500

	// maxDirEntries caps a directory listing.
	maxDirEntries = 200
)

func readFileTool() Tool {
	return FuncTool{
		Schema: ollama.Tool{
			Type: "function",
			Function: ollama.ToolSchema{
				Name:        "read_file",
				Description: "Read the contents of a text file. Output is truncated for large files.",
				Parameters: ollama.ToolParameters{
					Type: "object",
					Properties: map[string]ollama.ToolProperty{
						"path": {Type: "string", Description: "Path of the file to read"},
					},
					Required: []string{"path"},
				},
			},
		},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			path, ok := args["path"].(string)
			if !ok || path == "" {
				return "", fmt.Errorf("read_file: missing 'path' argument")
			}

			info, err := os.Stat(path)
			if err != nil {
				return "", fmt.Errorf("read_file: %w", err)
			}
			if info.IsDir() {
				return "", fmt.Errorf("read_file: %s is a directory", path)
			}

			file, err := os.Open(path)
			if err != nil {
				return "", fmt.Errorf("read_file: %w", err)
			}
			defer file.Close()

			var sb strings.Builder
			scanner := bufio.NewScanner(file)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			lines := 0
			truncated := false
			for scanner.Scan() {
				if lines >= maxReadLines || sb.Len() >= maxReadBytes {
					truncated = true
					break
				}
				sb.WriteString(scanner.Text())
				sb.WriteByte('\n')
				lines++
			}
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("read_file: %w", err)
			}
			if truncated {
				sb.WriteString("\n(output truncated)\n")
			}
			return sb.String(), nil
		},
	}
}

func listDirTool() Tool {
	return FuncTool{
		Schema: ollama.Tool{
			Type: "function",
			Function: ollama.ToolSchema{
				Name:        "list_dir",
				Description: "List the entries of a directory.",
				Parameters: ollama.ToolParameters{
					Type: "object",
					Properties: map[string]ollama.ToolProperty{
						"path": {Type: "string", Description: "Path of the directory to list"},
					},
					Required: []string{"path"},
				},
			},
		},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			path, ok := args["path"].(string)
			if !ok || path == "" {
				return "", fmt.Errorf("list_dir: missing 'path' argument")
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return "", fmt.Errorf("list_dir: %w", err)
			}

			var sb strings.Builder
			for i, entry := range entries {
				if i >= maxDirEntries {
					sb.WriteString("(listing truncated)\n")
					break
				}
				name := entry.Name()
				if entry.IsDir() {
					name += string(filepath.Separator)
				}
				sb.WriteString(name)
				sb.WriteByte('\n')
			}
			return sb.String(), nil
		},
	}
}
