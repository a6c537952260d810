// Package domain contains the core domain entities and value objects for tickship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (network, storage, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Record]: A decoded frame payload, kept as the text received on the wire
//   - [Tick]: A record converted to the persisted column types
//   - [Batch]: An ordered group of records handed to a sink together
//   - [Status]: Counters persisted for operators after each flush
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
