// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the blog's record shapes and form inputs.
//
// Records (Session, Post, Comment, Notification) mirror what the REST
// backend sends. Inputs (PostInput, CommentInput, Credentials) are what the
// view layer hands to the mutation flows; each carries validator tags and a
// Validate method.
package datatypes

import (
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// blogValidate is the validator instance for blog inputs.
var blogValidate *validator.Validate

func init() {
	blogValidate = validator.New(validator.WithRequiredStructEnabled())

	// notblank rejects empty and whitespace-only text
	_ = blogValidate.RegisterValidation("notblank", validators.NotBlank)
}

// Validator returns the shared validator so other packages (the dev
// backend's request binding) apply the same rules.
func Validator() *validator.Validate {
	return blogValidate
}
