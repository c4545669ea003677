// Package validate performs synchronous input validation for job
// submissions: URL schemes, prompt length, and the per-model
// resolution/duration compatibility tables. Grounded on
// input_validator.py's ValidationError/InputValidator.
package validate

import (
	"fmt"
	"net/url"
	"strings"
)

// Error mirrors input_validator.py's ValidationError dataclass-exception.
type Error struct {
	Field   string
	Message string
	Value   interface{}
	Code    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Collection mirrors ValidationErrorCollection.
type Collection struct {
	Errors []*Error
}

func (c *Collection) Add(field, message, code string, value interface{}) {
	c.Errors = append(c.Errors, &Error{Field: field, Message: message, Value: value, Code: code})
}

func (c *Collection) HasErrors() bool { return len(c.Errors) > 0 }

func (c *Collection) Error() string {
	parts := make([]string, len(c.Errors))
	for i, e := range c.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

const (
	DefaultMaxPromptLength = 2000
	DefaultMinPromptLength = 1
	DefaultMaxQuantity     = 500
)

var defaultURLSchemes = map[string]bool{"http": true, "https": true}
var defaultImageSchemes = map[string]bool{"https": true}

// ModelResolutions mirrors input_validator.py's MODEL_RESOLUTIONS exactly.
var ModelResolutions = map[string][]string{
	"wan":             {"480p", "720p", "1080p"},
	"wan21":           {"480p", "720p"},
	"wan22":           {"480p", "580p", "720p"},
	"wan-pro":         {"1080p"},
	"kling":           {"720p", "1080p"},
	"kling-master":    {"720p", "1080p"},
	"kling-standard":  {"720p", "1080p"},
	"veo2":            {"720p"},
	"veo31":           {"720p", "1080p"},
	"veo31-fast":      {"720p", "1080p"},
	"veo31-flf":       {"720p", "1080p"},
	"veo31-fast-flf":  {"720p", "1080p"},
	"sora-2":          {"720p"},
	"sora-2-pro":      {"720p", "1080p"},
}

// ModelDurations mirrors input_validator.py's MODEL_DURATIONS exactly.
var ModelDurations = map[string][]int{
	"wan":            {5},
	"wan21":          {5},
	"wan22":          {5},
	"wan-pro":        {5},
	"kling":          {5, 10},
	"kling-master":   {5, 10},
	"kling-standard": {5, 10},
	"veo2":           {4, 6, 8},
	"veo31":          {4, 6, 8},
	"veo31-fast":     {4, 6, 8},
	"veo31-flf":      {4, 6, 8},
	"veo31-fast-flf": {4, 6, 8},
	"sora-2":         {4, 8, 12},
	"sora-2-pro":     {4, 8, 12},
}

// Validator mirrors InputValidator, parameterized over the scheme sets
// and length bounds the way the Python class's constructor args are.
type Validator struct {
	URLSchemes       map[string]bool
	ImageSchemes     map[string]bool
	MaxPromptLength  int
	MinPromptLength  int
	MaxQuantity      int
}

func New() *Validator {
	return &Validator{
		URLSchemes:      defaultURLSchemes,
		ImageSchemes:    defaultImageSchemes,
		MaxPromptLength: DefaultMaxPromptLength,
		MinPromptLength: DefaultMinPromptLength,
		MaxQuantity:     DefaultMaxQuantity,
	}
}

// ValidateURL mirrors validate_url.
func (v *Validator) ValidateURL(field, raw string) *Error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Field: field, Message: "not a valid URL", Value: raw, Code: "invalid_url"}
	}
	if !v.URLSchemes[strings.ToLower(u.Scheme)] {
		return &Error{Field: field, Message: "unsupported URL scheme: " + u.Scheme, Value: raw, Code: "invalid_scheme"}
	}
	return nil
}

// ValidateImageURL mirrors validate_image_url: images are restricted to
// the tighter image-scheme set (https only by default).
func (v *Validator) ValidateImageURL(field, raw string) *Error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Field: field, Message: "not a valid image URL", Value: raw, Code: "invalid_url"}
	}
	if !v.ImageSchemes[strings.ToLower(u.Scheme)] {
		return &Error{Field: field, Message: "image URL must use https", Value: raw, Code: "invalid_scheme"}
	}
	return nil
}

// ValidatePrompt mirrors the prompt length checks.
func (v *Validator) ValidatePrompt(prompt string) *Error {
	l := len([]rune(prompt))
	if l < v.MinPromptLength {
		return &Error{Field: "prompt", Message: "prompt is too short", Value: prompt, Code: "prompt_too_short"}
	}
	if l > v.MaxPromptLength {
		return &Error{Field: "prompt", Message: "prompt exceeds maximum length", Value: l, Code: "prompt_too_long"}
	}
	return nil
}

// ValidateModelCompatibility mirrors the model<->resolution<->duration
// cross-checks scattered through input_validator.py's job validation
// path.
func (v *Validator) ValidateModelCompatibility(model, resolution string, durationSec int) *Error {
	resolutions, ok := ModelResolutions[model]
	if !ok {
		return &Error{Field: "model", Message: "unknown model: " + model, Value: model, Code: "unknown_model"}
	}
	if resolution != "" && !contains(resolutions, resolution) {
		return &Error{Field: "resolution", Message: fmt.Sprintf("resolution %s not supported by model %s", resolution, model), Value: resolution, Code: "invalid_resolution"}
	}
	if durations, ok := ModelDurations[model]; ok && durationSec != 0 {
		if !containsInt(durations, durationSec) {
			return &Error{Field: "duration_sec", Message: fmt.Sprintf("duration %d not supported by model %s", durationSec, model), Value: durationSec, Code: "invalid_duration"}
		}
	}
	return nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// ValidateQuantity mirrors the batch submit boundary check: quantity must
// be at least 1 and no more than MaxQuantity.
func (v *Validator) ValidateQuantity(quantity int) *Error {
	max := v.MaxQuantity
	if max <= 0 {
		max = DefaultMaxQuantity
	}
	if quantity < 1 {
		return &Error{Field: "quantity", Message: "quantity must be at least 1", Value: quantity, Code: "invalid_quantity"}
	}
	if quantity > max {
		return &Error{Field: "quantity", Message: fmt.Sprintf("quantity exceeds maximum of %d", max), Value: quantity, Code: "quantity_too_large"}
	}
	return nil
}

// JobRequest is the minimal shape validate.Job needs; the orchestrator's
// richer job-submission struct satisfies this.
type JobRequest struct {
	Prompt      string
	ImageURL    string
	Model       string
	Resolution  string
	DurationSec int
	Quantity    int
}

// Job runs every applicable check and returns a *Collection (nil if
// clean), mirroring InputValidator's top-level validate_job entry point.
func (v *Validator) Job(req JobRequest) *Collection {
	c := &Collection{}

	if e := v.ValidatePrompt(req.Prompt); e != nil {
		c.Errors = append(c.Errors, e)
	}
	if req.ImageURL != "" {
		if e := v.ValidateImageURL("image_url", req.ImageURL); e != nil {
			c.Errors = append(c.Errors, e)
		}
	}
	if req.Model != "" {
		if e := v.ValidateModelCompatibility(req.Model, req.Resolution, req.DurationSec); e != nil {
			c.Errors = append(c.Errors, e)
		}
	}
	if e := v.ValidateQuantity(req.Quantity); e != nil {
		c.Errors = append(c.Errors, e)
	}

	if !c.HasErrors() {
		return nil
	}
	return c
}
