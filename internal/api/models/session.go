package models

// HourRange is a closed interval of hours of day.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// View is the map camera.
type View struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
}

// Session is the state of a dashboard session.
type Session struct {
	SessionID string    `json:"sessionId"`
	City      string    `json:"city"`
	Hours     HourRange `json:"hours"`
	HourText  string    `json:"hourText"`
	View      View      `json:"view"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`

	// Warning is set when the state changed but the data reload failed.
	Warning *string `json:"warning,omitempty"`
}

// SetHoursRequest is the body of PUT /v1/sessions/{sessionId}/hours.
type SetHoursRequest struct {
	Start *int `json:"start"`
	End   *int `json:"end"`
}

// SetViewRequest is the body of PUT /v1/sessions/{sessionId}/view.
type SetViewRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Zoom      *float64 `json:"zoom"`
	Pitch     *float64 `json:"pitch"`
}
