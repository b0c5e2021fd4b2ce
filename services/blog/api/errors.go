// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnexpectedStatus wraps every non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrDecode is returned when a response body does not match the
	// expected envelope.
	ErrDecode = errors.New("decode response")

	// ErrInvalidConfig is returned by NewClient for a bad base URL.
	ErrInvalidConfig = errors.New("invalid api client config")
)

// Error is a non-2xx response from the backend.
//
// Message carries the server's "message" field when the body had one.
type Error struct {
	Status  int
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// Unwrap lets errors.Is match ErrUnexpectedStatus.
func (e *Error) Unwrap() error {
	return ErrUnexpectedStatus
}

// MessageOf returns the server-provided message carried by err, or
// fallback when there is none.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
