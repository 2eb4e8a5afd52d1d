// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., slot) inside this directory.
package repository

import "errors"

// ErrNoDocument is returned by Current while the slot is empty.
var ErrNoDocument = errors.New("repository: no document stored")
