package models

import "time"

// AuditKind names a security-relevant event.
type AuditKind string

const (
	AuditRegisterSuccess                 AuditKind = "REGISTER_SUCCESS"
	AuditLoginSuccess                    AuditKind = "LOGIN_SUCCESS"
	AuditLoginFailed                     AuditKind = "LOGIN_FAILED"
	AuditPasswordResetSuccess            AuditKind = "PASSWORD_RESET_SUCCESS"
	AuditPasswordResetFailedUserNotFound AuditKind = "PASSWORD_RESET_FAILED_USER_NOT_FOUND"
)

// AuditEvent is one append-only audit row. Email holds the attempted
// address even when no such account exists.
type AuditEvent struct {
	ID         int64
	Email      string
	Event      AuditKind
	ClientAddr string
	CreatedAt  time.Time
}
