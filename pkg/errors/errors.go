// Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2024-2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
)

func (e *CompanionError) Error() string {
	msg := fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Metadata != nil {
		if stderr, ok := e.Metadata["stderr"]; ok && stderr != "" {
			msg += "\ncommand output: " + stderr
		}
	}
	return msg
}

func (e *CompanionError) WithMetadata(key, value string) *CompanionError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// New creates a new CompanionError from a known code.
func New(code ErrorCode, details string) *CompanionError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &CompanionError{Code: code, Domain: "UNKNOWN", Message: "unknown error", Details: details}
	}
	return &CompanionError{Code: code, Domain: def.domain, Message: def.message, Details: details}
}

// Is implements the interface consumed by errors.Is.
func (e *CompanionError) Is(target error) bool {
	if t, ok := target.(*CompanionError); ok {
		return e.Code == t.Code && e.Domain == t.Domain
	}
	return false
}

// Wrap wraps an existing error under a new code, preserving metadata.
func Wrap(err error, code ErrorCode) *CompanionError {
	if re, ok := err.(*CompanionError); ok {
		newErr := New(code, re.Details)
		for k, v := range re.Metadata {
			newErr.WithMetadata(k, v)
		}
		newErr.WithMetadata("wrapped_code", fmt.Sprintf("%d", re.Code))
		newErr.WithMetadata("wrapped_domain", string(re.Domain))
		return newErr
	}
	return New(code, err.Error())
}

// NewCommandError builds a CommandExecution error carrying the failed
// command line, its exit code, and its combined output.
func NewCommandError(cmdLine string, exitCode int, output string) *CompanionError {
	return New(CommandExecution, fmt.Sprintf("exit code %d", exitCode)).
		WithMetadata("command", cmdLine).
		WithMetadata("exit_code", fmt.Sprintf("%d", exitCode)).
		WithMetadata("output", output)
}

// IsCompanionError reports whether err is a *CompanionError.
func IsCompanionError(err error) bool {
	_, ok := err.(*CompanionError)
	return ok
}

// GetCode extracts the ErrorCode from err if it is, or wraps, a CompanionError.
func GetCode(err error) (ErrorCode, bool) {
	if err == nil {
		return 0, false
	}
	if re, ok := err.(*CompanionError); ok {
		return re.Code, true
	}
	var re *CompanionError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}
