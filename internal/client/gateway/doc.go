// Package gateway defines the contract between the client core and the remote
// identity/profile service.
//
// # Overview
//
// The package provides:
//  1. The transport-agnostic Gateway interface: session lookup and change
//     notification, SignIn/SignUp/SignOut, GetProfile/UpsertProfile, Ping.
//  2. Error kinds shared by every implementation (see Error and the Err*
//     sentinels), so callers never depend on a transport's status codes.
//
// Implementations live in subpackages:
//
//   - restgw:  HTTP/JSON identity API with OAuth2 password/refresh grants
//   - grpcgw:  gRPC transport with structpb payloads
//   - memgw:   in-process gateway for offline use and tests
//
// # Error Handling
//
// Every failure returned by an implementation matches exactly one of
// ErrUnavailable, ErrUnauthorized, ErrRateLimited, ErrNotFound or ErrRejected
// via errors.Is. When the remote side sent a human-readable message it is kept
// verbatim in (*Error).Message.
//
// # Concurrency & Contexts
//
// Implementations must be safe for concurrent use. All blocking operations
// accept a context.Context and honor cancellation and deadlines.
package gateway
