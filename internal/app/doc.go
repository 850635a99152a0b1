// Package app provides the application service layer.
//
// Orchestrates the use cases: account provisioning on first login, record lookups for the
// dashboard views, listing the caller's panel servers, and copying records between stores.
// Depends on domain interfaces, not concrete adapters.
package app
