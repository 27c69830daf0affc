package hours

import "fmt"

// Preset is a quick-select button for the hour filter.
type Preset struct {
	ID    string
	Label string
	Range Range
}

// PresetAll is the id of the whole-day preset.
const PresetAll = "all"

var presets = []Preset{
	{ID: "midnight-4am", Label: "12 AM - 4 AM", Range: Range{Start: 0, End: 3}},
	{ID: "4am-8am", Label: "4 AM - 8 AM", Range: Range{Start: 4, End: 7}},
	{ID: "8am-noon", Label: "8 AM - 12 PM", Range: Range{Start: 8, End: 11}},
	{ID: "noon-4pm", Label: "12 PM - 4 PM", Range: Range{Start: 12, End: 15}},
	{ID: "4pm-8pm", Label: "4 PM - 8 PM", Range: Range{Start: 16, End: 19}},
	{ID: "8pm-midnight", Label: "8 PM - 12 AM", Range: Range{Start: 20, End: 23}},
	{ID: PresetAll, Label: "All Hours", Range: All},
}

// Presets returns the preset buttons in display order. The six quadrants
// come first, the whole-day preset last.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// LookupPreset finds a preset by id.
func LookupPreset(id string) (Preset, error) {
	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
}
