// Package errors provides structured error handling for the token registry.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Category errors
	CodeInvalidCategory Code = "TOKEN_INVALID_CATEGORY"

	// Token errors
	CodeTokenNotFound          Code = "TOKEN_NOT_FOUND"
	CodeTokenNotCreator        Code = "TOKEN_NOT_CREATOR"
	CodeTokenDuplicateIdentity Code = "TOKEN_DUPLICATE_IDENTITY"
	CodeTokenVersionConflict   Code = "TOKEN_VERSION_CONFLICT"
	CodeTokenNameEmpty         Code = "TOKEN_NAME_EMPTY"
	CodeTokenOwnerEmpty        Code = "TOKEN_OWNER_EMPTY"
	CodeTokenCreatorEmpty      Code = "TOKEN_CREATOR_EMPTY"

	// Collection errors
	CodeCollectionExists   Code = "COLLECTION_EXISTS"
	CodeCollectionNotFound Code = "COLLECTION_NOT_FOUND"

	// Mint grant errors
	CodeMintGrantInvalid  Code = "MINT_GRANT_INVALID"
	CodeMintGrantExpired  Code = "MINT_GRANT_EXPIRED"
	CodeMintGrantMismatch Code = "MINT_GRANT_MISMATCH"
)

// GRPCCode maps registry codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidCategory,
		CodeTokenNameEmpty,
		CodeTokenOwnerEmpty,
		CodeTokenCreatorEmpty:
		return codes.InvalidArgument

	// NotFound - missing records, including post-burn lookups
	case CodeTokenNotFound:
		return codes.NotFound

	// PermissionDenied - caller is not the token's creator
	case CodeTokenNotCreator,
		CodeMintGrantMismatch:
		return codes.PermissionDenied

	// AlreadyExists - identity or collection collisions
	case CodeTokenDuplicateIdentity,
		CodeCollectionExists:
		return codes.AlreadyExists

	// Aborted - optimistic concurrency conflicts, caller may retry
	case CodeTokenVersionConflict:
		return codes.Aborted

	// FailedPrecondition - operations before collection bootstrap
	case CodeCollectionNotFound:
		return codes.FailedPrecondition

	// Unauthenticated - unverifiable mint grants
	case CodeMintGrantInvalid,
		CodeMintGrantExpired:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}
