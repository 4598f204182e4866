// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianCrosstab/pkg/validation"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// defsValidate is the validator instance for definition files.
// Initialized in init() with custom validators.
var defsValidate *validator.Validate

func init() {
	defsValidate = validator.New()

	_ = defsValidate.RegisterValidation("identifier", validateIdentifier)
	defsValidate.RegisterStructValidation(validateVariableShape, VariableDef{})
	defsValidate.RegisterStructValidation(validateBreakLabels, BreakDef{})
}

// validateIdentifier accepts names usable as field, entity and break ids.
func validateIdentifier(fl validator.FieldLevel) bool {
	return validation.IsIdentifier(fl.Field().String())
}

// validateVariableShape enforces that exactly one variable shape is set and
// that entities only accompany a field.
func validateVariableShape(sl validator.StructLevel) {
	v := sl.Current().Interface().(VariableDef)

	shapes := 0
	if v.Field != "" {
		shapes++
	}
	if v.Condition != nil {
		shapes++
	}
	if v.Always != nil {
		shapes++
	}
	if shapes != 1 {
		sl.ReportError(v.Field, "Field", "field", "one_shape", "")
	}
	if len(v.Entities) > 0 && v.Field == "" {
		sl.ReportError(v.Entities, "Entities", "entities", "entities_need_field", "")
	}
}

// validateBreakLabels rejects more labels than instances.
func validateBreakLabels(sl validator.StructLevel) {
	d := sl.Current().Interface().(BreakDef)
	if len(d.Labels) > len(d.Instances) {
		sl.ReportError(d.Labels, "Labels", "labels", "max_labels", fmt.Sprint(len(d.Instances)))
	}
}

// =============================================================================
// Validation entry points
// =============================================================================

// Validate checks the settings.
func (s Settings) Validate() error {
	return wrapValidation(defsValidate.Struct(s))
}

// Validate checks the whole document, including break name uniqueness
// across the forest.
//
// Outputs:
//
//	error - ErrInvalidDefinition wrapping validator.ValidationErrors, or
//	        ErrDuplicateBreak. Nil when the document is valid.
func (f *File) Validate() error {
	if err := wrapValidation(defsValidate.Struct(f)); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	return checkNames(f.Breaks, seen)
}

func checkNames(defs []BreakDef, seen map[string]struct{}) error {
	for _, d := range defs {
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateBreak, d.Name)
		}
		seen[d.Name] = struct{}{}
		if err := checkNames(d.Children, seen); err != nil {
			return err
		}
	}
	return nil
}

// wrapValidation turns validator output into an ErrInvalidDefinition whose
// message lists every failing field.
func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, strings.Join(msgs, "; "), verrs)
}
