package schema

import (
	"encoding/json"
	"fmt"

	"github.com/usewebget/webget/geom"
)

// Action is the closed set of steps an asset can perform. Every variant
// carries a "type" tag on the wire; unknown tags fail at parse time.
type Action interface {
	Kind() string
}

// Point is an explicit click position, offset from the element origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GotoAction navigates the page mid-sequence.
type GotoAction struct {
	URL       string `json:"url"`
	WaitUntil string `json:"waitUntil,omitempty"`
}

func (*GotoAction) Kind() string { return "goto" }

// ClickAction clicks an element, optionally inside a named frame.
type ClickAction struct {
	Selector      string `json:"selector"`
	FrameSelector string `json:"frameSelector,omitempty"`
	ClickCount    int    `json:"clickCount,omitempty"`
	Button        string `json:"button,omitempty"`
	Position      *Point `json:"position,omitempty"`
}

func (*ClickAction) Kind() string { return "click" }

// HoverAction moves the pointer over an element and leaves it there.
type HoverAction struct {
	Selector string `json:"selector"`
	Frame    string `json:"frame,omitempty"`
}

func (*HoverAction) Kind() string { return "hover" }

// FillAction replaces an element's content with Text.
type FillAction struct {
	Selector string `json:"selector"`
	Frame    string `json:"frame,omitempty"`
	Text     string `json:"text"`
}

func (*FillAction) Kind() string { return "fill" }

// ScrollAction scrolls an element's nearest scrollable ancestor so the
// element sits Offset pixels below the ancestor's top edge.
type ScrollAction struct {
	Selector string  `json:"selector"`
	Offset   float64 `json:"offset,omitempty"`
}

func (*ScrollAction) Kind() string { return "scroll" }

// CropAction selects the capture region. Fields are pointers so an absent
// value and an explicit zero stay distinct; Spec applies the defaults.
type CropAction struct {
	Selector string   `json:"selector,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Padding  *float64 `json:"padding,omitempty"`
	FullPage bool     `json:"fullPage,omitempty"`
}

func (*CropAction) Kind() string { return "crop" }

// Spec resolves the action's optional fields against the crop defaults:
// full reference box, no padding.
func (a *CropAction) Spec() geom.CropSpec {
	spec := geom.DefaultCropSpec()
	if a.X != nil {
		spec.X = *a.X
	}
	if a.Y != nil {
		spec.Y = *a.Y
	}
	if a.Width != nil {
		spec.Width = *a.Width
	}
	if a.Height != nil {
		spec.Height = *a.Height
	}
	if a.Padding != nil {
		spec.Padding = *a.Padding
	}
	return spec
}

// WaitAction suspends the pipeline for a fixed duration.
type WaitAction struct {
	Milliseconds int `json:"milliseconds"`
}

func (*WaitAction) Kind() string { return "wait" }

// ActionList decodes a JSON array of tagged actions into the closed
// variant set.
type ActionList []Action

func (l *ActionList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return &ValidationError{Field: "actions", Detail: "expected array"}
	}

	out := make(ActionList, 0, len(raws))
	for i, raw := range raws {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return &ValidationError{Field: fmt.Sprintf("actions[%d]", i), Detail: "expected object"}
		}

		var (
			action Action
			err    error
		)
		switch probe.Type {
		case "goto":
			a := &GotoAction{}
			err = json.Unmarshal(raw, a)
			action = a
		case "click":
			a := &ClickAction{}
			err = json.Unmarshal(raw, a)
			action = a
		case "hover":
			a := &HoverAction{}
			err = json.Unmarshal(raw, a)
			action = a
		case "fill":
			a := &FillAction{}
			err = json.Unmarshal(raw, a)
			action = a
		case "scroll":
			a := &ScrollAction{}
			err = json.Unmarshal(raw, a)
			action = a
		case "crop":
			a := &CropAction{}
			err = json.Unmarshal(raw, a)
			action = a
		case "wait":
			a := &WaitAction{}
			err = json.Unmarshal(raw, a)
			action = a
		case "":
			return &ValidationError{Field: fmt.Sprintf("actions[%d].type", i), Detail: "is required"}
		default:
			return &ValidationError{
				Field:  fmt.Sprintf("actions[%d].type", i),
				Detail: fmt.Sprintf("unknown action %q", probe.Type),
			}
		}
		if err != nil {
			return wrapJSONError(fmt.Sprintf("actions[%d]", i), err)
		}
		out = append(out, action)
	}

	*l = out
	return nil
}

func (l ActionList) MarshalJSON() ([]byte, error) {
	items := make([]map[string]any, 0, len(l))
	for _, a := range l {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		m["type"] = a.Kind()
		items = append(items, m)
	}
	return json.Marshal(items)
}
