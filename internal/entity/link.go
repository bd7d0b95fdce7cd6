// Package entity defines the entities and errors used in the application.
// It includes the Link struct, which maps a short code to a target URL, the
// ClickEvent recorded on every redirect, the statistics derived from those
// events and the error kinds shared by every layer.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInput is returned when a target URL, short code or statistics range is malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLinkNotFound is returned when a link with the specified short code cannot be found.
	ErrLinkNotFound = errors.New("link not found")
	// ErrShortCodeExists is returned when attempting to create a link with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrMaxRetriesExceeded is returned when no unique short code could be stored within the attempt budget.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
	// ErrForbidden is returned when the caller does not own the link it tries to access.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is returned when a caller credential cannot be verified.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransient is returned on timeouts and lost store connectivity.
	ErrTransient = errors.New("transient failure")
)

// Link represents a shortened URL.
type Link struct {
	ID         int64     // ID is the unique identifier of the link in the database.
	ShortCode  string    // ShortCode is the generated code used to resolve the target URL.
	TargetURL  string    // TargetURL is the absolute URL the short code redirects to.
	OwnerID    string    // OwnerID identifies the creator; empty for anonymous links.
	ClickCount int64     // ClickCount is the live number of redirects served for the link.
	CreatedAt  time.Time // CreatedAt is the timestamp when the link was created.
	UpdatedAt  time.Time // UpdatedAt is the timestamp when the target URL was last changed.
}

// HasOwner reports whether the link was created by an identified caller.
func (l *Link) HasOwner() bool {
	return l.OwnerID != ""
}

// AccessibleBy reports whether the identity may modify the link or read its statistics.
// Anonymous links are accessible by any verified identity.
func (l *Link) AccessibleBy(id Identity) bool {
	return !l.HasOwner() || l.OwnerID == id.Subject
}

// Identity is a verified caller produced by the access guard.
type Identity struct {
	Subject string
}
