// Package repository implements the ledger's persistence on MySQL, SQLite
// and Redis.  The sentinel values below let the ledger and handlers tell
// misconfiguration apart from ordinary storage failures.
package repository

import "errors"

// ErrUnsupportedDialect is returned when a SQL store is built for a driver
// whose statements are not implemented.
var ErrUnsupportedDialect = errors.New("unsupported sql dialect")

// ErrUnexpectedReply is returned when a Redis script answers with a shape
// the store does not understand.
var ErrUnexpectedReply = errors.New("unexpected redis reply")
