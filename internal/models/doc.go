// Package models defines domain entities and persistence interfaces for the analytics aggregator.
//
// The package contains two categories of types:
//
// 1. Value types carried inside a session:
//   - [Provider] : One of the three supported OAuth providers, with its session key
//   - [TokenRecord] : A normalized OAuth token set with an absolute expiry
//
// 2. Persistent entities:
//   - [Session] : Server-side session data addressed by the id in the session cookie
//
// Persistent entities implement the Model interface providing ID, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
