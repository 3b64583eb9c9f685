// Package core provides the domain logic of the check-in board.
//
// This package is independent of any transport or storage. It can be used by
// web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
//   - Participant, Draft and Change: the data model and the row-level change
//     notification emitted by the store.
//   - Board: the reconciler. It holds the ordered participant collection of
//     one device and folds insert, update and delete notifications into it.
//   - Service: the three mutation paths (add, import, check-in) plus
//     stateless listing. Mutations write to the [Store] only; devices learn
//     about the result from the change feed.
//   - Session: one connected device. It subscribes to the feed before the
//     initial fetch and applies notifications from a single goroutine.
//
// # Update Policy
//
// Updates are confirmed, not optimistic. A session's board changes only when
// the store's notification arrives, so a failed write never leaves a device
// showing a state the store does not have.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CFG001: configuration missing
//   - FETCH001: list could not be loaded
//   - MUT001-MUT005: add and check-in failures
//   - IMP001-IMP004: import failures
//   - FEED001: live feed interrupted
//   - DB001-DB003: unclassified store connectivity errors
package core
