// Package schema defines the asset descriptor driving one screenshot:
// target URL, viewport, emulation hints, the ordered action sequence, and
// the output location. Parsing is strict: unknown keys and unknown action
// tags are validation errors before any browser work begins.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ImageType selects the capture codec.
type ImageType string

const (
	ImageTypePNG  ImageType = "png"
	ImageTypeJPEG ImageType = "jpeg"
)

// MaxInputDepth caps nested-input recursion. Inputs are inline values, so
// cycles cannot occur, but a pathological nest should fail fast.
const MaxInputDepth = 8

// Cookie mirrors the browser cookie shape accepted in storage state.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// LocalStorageEntry is one key/value pair seeded into an origin.
type LocalStorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin groups local-storage entries by origin.
type Origin struct {
	Origin       string              `json:"origin"`
	LocalStorage []LocalStorageEntry `json:"localStorage"`
}

// StorageState pre-seeds cookies and local storage before navigation.
type StorageState struct {
	Cookies []Cookie `json:"cookies,omitempty"`
	Origins []Origin `json:"origins,omitempty"`
}

// Asset is the unit of work: one screenshot to produce and compare.
type Asset struct {
	URL               string            `json:"url"`
	BaseURL           string            `json:"baseUrl,omitempty"`
	Width             int               `json:"width,omitempty"`
	Height            int               `json:"height,omitempty"`
	DeviceScaleFactor float64           `json:"deviceScaleFactor,omitempty"`
	Actions           ActionList        `json:"actions,omitempty"`
	ColorScheme       string            `json:"colorScheme,omitempty"`
	ReducedMotion     string            `json:"reducedMotion,omitempty"`
	ForcedColors      string            `json:"forcedColors,omitempty"`
	StorageState      *StorageState     `json:"storageState,omitempty"`
	Type              ImageType         `json:"type,omitempty"`
	Quality           int               `json:"quality,omitempty"`
	Template          string            `json:"template,omitempty"`
	Inputs            map[string]*Asset `json:"inputs,omitempty"`
	OmitBackground    bool              `json:"omitBackground,omitempty"`
	Border            string            `json:"border,omitempty"`
	Headed            bool              `json:"headed,omitempty"`
	Diff              bool              `json:"diff,omitempty"`

	// Output is the baseline path; Input the descriptor path. Both are
	// set by FromFile and empty on nested inputs.
	Output string `json:"output,omitempty"`
	Input  string `json:"input,omitempty"`
}

// Defaults applied where the descriptor is silent.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ViewportWidth returns the configured width or the default.
func (a *Asset) ViewportWidth() int {
	if a.Width > 0 {
		return a.Width
	}
	return DefaultWidth
}

// ViewportHeight returns the configured height or the default.
func (a *Asset) ViewportHeight() int {
	if a.Height > 0 {
		return a.Height
	}
	return DefaultHeight
}

// ImageType returns the configured type, defaulting to PNG (nested inputs
// never carry an output extension to infer from).
func (a *Asset) ImageType() ImageType {
	if a.Type != "" {
		return a.Type
	}
	return ImageTypePNG
}

// TypeFromOutput infers the image type from the output path extension.
func TypeFromOutput(output string) (ImageType, error) {
	switch {
	case strings.HasSuffix(output, ".png"):
		return ImageTypePNG, nil
	case strings.HasSuffix(output, ".jpg"), strings.HasSuffix(output, ".jpeg"):
		return ImageTypeJPEG, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidFileType, output)
}

// MIMEFromPath maps an image path to its content type.
func MIMEFromPath(path string) (string, error) {
	t, err := TypeFromOutput(path)
	if err != nil {
		return "", err
	}
	return "image/" + string(t), nil
}

// Parse decodes and validates an asset descriptor. Unknown keys are
// rejected.
func Parse(data []byte) (*Asset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var asset Asset
	if err := dec.Decode(&asset); err != nil {
		return nil, wrapJSONError("", err)
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	return &asset, nil
}

// FromFile loads the descriptor next to output (output + ".json"),
// infers the image type from the output extension, and stamps the
// headed/diff flags through.
func FromFile(output string, headed, diff bool) (*Asset, error) {
	imgType, err := TypeFromOutput(output)
	if err != nil {
		return nil, err
	}

	input := output + ".json"
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", input, err)
	}

	asset, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if asset.Type != "" && asset.Type != imgType {
		return nil, &ValidationError{
			Field:  "type",
			Detail: fmt.Sprintf("%q does not match output extension of %s", asset.Type, output),
		}
	}

	asset.Output = output
	asset.Input = input
	asset.Type = imgType
	asset.Headed = headed
	asset.Diff = diff
	return asset, nil
}

// Validate checks field constraints recursively, including every nested
// input. It runs before any browser resource is acquired.
func (a *Asset) Validate() error {
	return a.validate("", 0)
}

func (a *Asset) validate(prefix string, depth int) error {
	if depth > MaxInputDepth {
		return &ValidationError{Field: field(prefix, "inputs"), Detail: "nested too deeply"}
	}
	if a.URL == "" {
		return &ValidationError{Field: field(prefix, "url"), Detail: "is required"}
	}
	if a.Width < 0 {
		return &ValidationError{Field: field(prefix, "width"), Detail: "must be positive"}
	}
	if a.Height < 0 {
		return &ValidationError{Field: field(prefix, "height"), Detail: "must be positive"}
	}
	if a.DeviceScaleFactor < 0 || a.DeviceScaleFactor > 3 {
		return &ValidationError{Field: field(prefix, "deviceScaleFactor"), Detail: "must be between 1 and 3"}
	}
	if a.Quality < 0 || a.Quality > 100 {
		return &ValidationError{Field: field(prefix, "quality"), Detail: "must be between 0 and 100"}
	}
	if a.Type != "" && a.Type != ImageTypePNG && a.Type != ImageTypeJPEG {
		return &ValidationError{Field: field(prefix, "type"), Detail: `must be "png" or "jpeg"`}
	}
	if err := enum(prefix, "colorScheme", a.ColorScheme, "no-preference", "light", "dark"); err != nil {
		return err
	}
	if err := enum(prefix, "reducedMotion", a.ReducedMotion, "no-preference", "reduce"); err != nil {
		return err
	}
	if err := enum(prefix, "forcedColors", a.ForcedColors, "none", "active"); err != nil {
		return err
	}

	for i, action := range a.Actions {
		if err := validateAction(field(prefix, fmt.Sprintf("actions[%d]", i)), action); err != nil {
			return err
		}
	}

	for name, nested := range a.Inputs {
		if nested == nil {
			return &ValidationError{Field: field(prefix, "inputs."+name), Detail: "is required"}
		}
		if err := nested.validate(field(prefix, "inputs."+name), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func validateAction(prefix string, action Action) error {
	switch a := action.(type) {
	case *GotoAction:
		if a.URL == "" {
			return &ValidationError{Field: prefix + ".url", Detail: "is required"}
		}
	case *ClickAction:
		if a.Selector == "" {
			return &ValidationError{Field: prefix + ".selector", Detail: "is required"}
		}
		if a.ClickCount < 0 || a.ClickCount > 3 {
			return &ValidationError{Field: prefix + ".clickCount", Detail: "must be between 1 and 3"}
		}
		if a.Button != "" && a.Button != "left" && a.Button != "right" && a.Button != "middle" {
			return &ValidationError{Field: prefix + ".button", Detail: `must be "left", "right" or "middle"`}
		}
	case *HoverAction:
		if a.Selector == "" {
			return &ValidationError{Field: prefix + ".selector", Detail: "is required"}
		}
	case *FillAction:
		if a.Selector == "" {
			return &ValidationError{Field: prefix + ".selector", Detail: "is required"}
		}
	case *ScrollAction:
		if a.Selector == "" {
			return &ValidationError{Field: prefix + ".selector", Detail: "is required"}
		}
	case *WaitAction:
		if a.Milliseconds < 0 {
			return &ValidationError{Field: prefix + ".milliseconds", Detail: "must be positive"}
		}
	case *CropAction:
		// All fields optional.
	}
	return nil
}

func enum(prefix, name, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, v := range allowed {
		if value == v {
			return nil
		}
	}
	return &ValidationError{
		Field:  field(prefix, name),
		Detail: fmt.Sprintf("unknown value %q", value),
	}
}

func field(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
