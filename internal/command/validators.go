// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

func GlobalFlagsValidator(ctx context.Context, c *cli.Command) error {
	return nil
}

type FlagValidatorType func(any) error

// FlagValidators chains validators, stopping at the first failure.
func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator rejects a flag value that is itself a flag. urfave/cli
// accepts "--attrs --filter" by taking "--filter" as the attrs value, and
// there is no switch to turn that off.
func JammedFlagValidator(value any) error {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "--") {
		return errors.New("looks like a flag, not a value")
	}
	return nil
}

// MustBeTrueValidator rejects an explicit false on flags that only make sense
// as an affirmation.
func MustBeTrueValidator(value any) error {
	if b, ok := value.(bool); ok && b {
		return nil
	}
	return errors.New("only true makes sense here")
}

func OutputValidator(value any) error {
	return oneOf(value, "text", "json", "raw", "yaml")
}

func PolicyValidator(value any) error {
	return oneOf(value, "cache-first", "revalidate", "bypass")
}

func oneOf(value any, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("must be one of %v", allowed)
}
