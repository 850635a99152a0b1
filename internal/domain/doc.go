// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (identity.go, record.go, panel.go, reputation.go, config.go) hold
// shared types and the contracts adapters implement. No implementation code lives here.
package domain
