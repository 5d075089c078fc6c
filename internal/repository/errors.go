// Package repository persists the console's snapshots and preferences in
// MySQL. Sentinel errors let higher layers tell failure cases apart.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist. Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write was refused because the stored row
// is newer. Callers usually treat it as a no-op.
var ErrConflict = errors.New("conflict")
