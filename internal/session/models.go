// Package session owns the per-user dashboard state: the selected hour range
// and the map view. State changes only through the transition operations of
// Service, and every hour transition reloads the dashboard data.
package session

import (
	"errors"
	"time"

	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/hours"
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidView     = errors.New("invalid map view")
)

// View limits.
const (
	MaxZoom  = 24
	MaxPitch = 85
)

// Session is the state of one interactive dashboard session.
type Session struct {
	ID         string
	Hours      hours.Range
	View       dashboard.ViewState
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSeenAt time.Time
}

// New returns a session in its initial state: all hours, default view.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Hours:      hours.All,
		View:       dashboard.DefaultView(),
		CreatedAt:  now,
		UpdatedAt:  now,
		LastSeenAt: now,
	}
}

// ValidateView checks that v is a drawable camera position.
func ValidateView(v dashboard.ViewState) error {
	switch {
	case v.Latitude < -90 || v.Latitude > 90:
		return errors.Join(ErrInvalidView, errors.New("latitude must be between -90 and 90"))
	case v.Longitude < -180 || v.Longitude > 180:
		return errors.Join(ErrInvalidView, errors.New("longitude must be between -180 and 180"))
	case v.Zoom < 0 || v.Zoom > MaxZoom:
		return errors.Join(ErrInvalidView, errors.New("zoom must be between 0 and 24"))
	case v.Pitch < 0 || v.Pitch > MaxPitch:
		return errors.Join(ErrInvalidView, errors.New("pitch must be between 0 and 85"))
	}
	return nil
}
