// Package models defines domain entities and persistence interfaces for the compuse studio.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs passed between the capture engine and its host
//   - [AudioClip] : A recorded take with a transient or durable source URI
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Draft] : Song drafts holding a chord sheet and the key it is written in
//   - [PersistedClip] : Stored clips belonging to a draft, keyed by the clip's capture-time ID
//
// All persistent entities implement the Model interface providing ID, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
