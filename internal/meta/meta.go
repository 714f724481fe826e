// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package meta

import (
	"context"

	"github.com/go-preheat/preheat/internal/config"
)

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args        []string
	Config      config.Type
	Context     context.Context
	StartingDir string
}
