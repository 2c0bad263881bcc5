// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kb

import (
	"context"
	_ "embed"
)

// DefaultKnowledgeBase is the rule document compiled into the binary.
//
//go:embed default_kb.yaml
var DefaultKnowledgeBase []byte

// EmbeddedSource serves DefaultKnowledgeBase.
type EmbeddedSource struct{}

// Fetch returns a copy of the embedded document.
func (EmbeddedSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, len(DefaultKnowledgeBase))
	copy(out, DefaultKnowledgeBase)
	return out, nil
}

// String implements fmt.Stringer.
func (EmbeddedSource) String() string {
	return "embedded"
}
