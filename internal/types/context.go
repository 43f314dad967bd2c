package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID      ContextKey = "ctx_request_id"
	CtxOrganizationID ContextKey = "ctx_organization_id"
	CtxUserID         ContextKey = "ctx_user_id"

	// DefaultOrganizationID is used when no organization is present in the context
	DefaultOrganizationID = "00000000-0000-0000-0000-000000000000"
	// DefaultUserID is the fallback actor identity
	DefaultUserID = "00000000-0000-0000-0000-000000000000"
	// SystemUserID is the fixed actor identity for mutations performed by
	// scheduled sweeps and the payment gateway webhook receiver
	SystemUserID = "system"

	HeaderRequestID      = "X-Request-ID"
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetOrganizationID(ctx context.Context) string {
	if orgID, ok := ctx.Value(CtxOrganizationID).(string); ok {
		return orgID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// SetOrganizationID sets the organization ID in the context
func SetOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, CtxOrganizationID, orgID)
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// NewSystemContext returns a context carrying the fixed system actor identity.
// Used by sweep executions and the webhook receiver.
func NewSystemContext(ctx context.Context) context.Context {
	return SetUserID(ctx, SystemUserID)
}
