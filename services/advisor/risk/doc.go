// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk defines the risk tier scale and the aggregation of rule
// contributions into a final tier and safeguard list.
//
// # Tier Scale
//
// Tiers form a fixed total order:
//
//	none < low < medium < high
//
// The final tier of an assessment is the maximum tier contributed by any
// fired rule. Aggregation never lowers a tier: adding a contribution can
// only keep the result the same or raise it.
//
// # Aggregation
//
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│ R1: medium   │   │ R2: high     │   │ R3: -        │
//	│              │   │ legal review │   │ human check  │
//	└──────┬───────┘   └──────┬───────┘   └──────┬───────┘
//	       └──────────────────┼──────────────────┘
//	                          ▼
//	               ┌─────────────────────┐
//	               │      Aggregate      │
//	               │  tier = max(...)    │
//	               │  safeguards = union │
//	               └─────────────────────┘
//
// Safeguards are deduplicated and kept in the order they were first
// contributed, which is the engine's firing order.
package risk
