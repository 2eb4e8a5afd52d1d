// Package model contains domain models shared across layers.
package model

import "time"

// Document is the single stored file served as the current document.
// It carries no storage-specific tags so every layer can use it directly.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
