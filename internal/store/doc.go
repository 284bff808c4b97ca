// Package store defines the persistence interfaces consumed by the API
// layer. Concrete implementations live in internal/platform/postgres.
package store
