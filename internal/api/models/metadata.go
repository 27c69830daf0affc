package models

// Preset is an hour-range quick-select button.
type Preset struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	HourText string `json:"hourText"`
}

// Presets lists the preset buttons in display order.
type Presets struct {
	Items []Preset `json:"items"`
}
