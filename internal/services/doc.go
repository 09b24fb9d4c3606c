// Package services defines the [Storage] interface for persisted clip audio and implements it twice.
//
// # Disk
//
// [DiskStorage] writes objects under a root directory and returns file:// URIs. Keys and URIs that would
// leave the root are rejected.
//
// # Bucket
//
// [BucketService] talks to a storage bucket HTTP API. The configured API key is sent as a bearer token
// through an [oauth2] static token source.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrObjectNotFound] : the URI has no object behind it
//   - [shared.ErrStorage] : the backend rejected the request
//   - [shared.ErrServiceUnavailable] : the bucket API could not be reached
//   - [shared.ErrInvalidArgument] : the URI belongs to another storage
package services
