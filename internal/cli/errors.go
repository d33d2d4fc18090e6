// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all commands.
//
// Handlers always return errors instead of printing and returning nil;
// main maps the returned error to an exit code.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/quill-sh/quill/internal/ollama"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNetworkError = 4
	ExitNotFound     = 5
	ExitInterrupted  = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError indicates the command was invoked incorrectly.
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("usage: quill %s: %s", e.Command, e.Reason)
	}
	return fmt.Sprintf("usage: %s", e.Reason)
}

// NewUsageError creates a usage error for the given command.
func NewUsageError(command, reason string) error {
	return &UsageError{Command: command, Reason: reason}
}

// NotFoundError indicates a named resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConfigError wraps a configuration load or save failure.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s failed: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return ExitNotFound
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return ExitConfigError
	}

	if ollama.IsNotRunning(err) || ollama.IsTimeout(err) {
		return ExitNetworkError
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	return ExitGeneralError
}
