package platform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionInvalid is reported when the group call no longer exists.
	ErrSessionInvalid = errors.New("group call is invalid or has ended")
	// ErrAdminRequired is reported when the account lacks call management rights.
	ErrAdminRequired = errors.New("admin rights required")
	// ErrPublicChannelRequired is reported when an operation needs a public channel.
	ErrPublicChannelRequired = errors.New("public channel required")
	// ErrNotFound is reported when a user, channel or username cannot be resolved.
	ErrNotFound = errors.New("not found")
)

// RPCError is a failed remote call as reported by the platform.
type RPCError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rpc error %d %s: %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("rpc error %d %s", e.Code, e.Type)
}

// Unwrap maps well-known platform error types onto the package sentinels.
func (e *RPCError) Unwrap() error {
	switch t := strings.ToUpper(e.Type); {
	case t == "GROUPCALL_INVALID", t == "GROUPCALL_FORBIDDEN", t == "GROUPCALL_ALREADY_DISCARDED":
		return ErrSessionInvalid
	case t == "CHAT_ADMIN_REQUIRED", t == "GROUPCALL_ADMIN_REQUIRED":
		return ErrAdminRequired
	case t == "PUBLIC_CHANNEL_MISSING":
		return ErrPublicChannelRequired
	case t == "USERNAME_NOT_OCCUPIED", t == "USERNAME_INVALID", strings.HasSuffix(t, "_NOT_FOUND"):
		return ErrNotFound
	}
	return nil
}

// IsRPC reports whether err carries a platform RPC failure.
func IsRPC(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}
