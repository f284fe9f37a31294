package domain

// Creature is one catalog record.
type Creature struct {
	Name  string `json:"name"`
	Image string `json:"img"`
	Level string `json:"level"`
}

// FusionRequest is what a caller hands to the orchestrator. Both names are
// expected to be non-empty and distinct; image references are passed through.
type FusionRequest struct {
	NameA  string
	NameB  string
	ImageA string
	ImageB string
}

// Draft is the untrusted output of text generation. Every field is optional;
// nil means the model did not supply a usable value.
type Draft struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Level       *string `json:"level,omitempty"`
	Type        *string `json:"type,omitempty"`
	ImagePrompt *string `json:"imagePrompt,omitempty"`
}

// IsEmpty reports whether the draft carries no fields at all.
func (d Draft) IsEmpty() bool {
	return d.Name == nil && d.Description == nil && d.Level == nil &&
		d.Type == nil && d.ImagePrompt == nil
}

type OriginalImages struct {
	A string `json:"a"`
	B string `json:"b"`
}

// FusionResult is the fully populated value returned to callers.
// FusionImage is either a base64 data URI or a placeholder URL.
type FusionResult struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Level          string         `json:"level"`
	Type           string         `json:"type"`
	ImagePrompt    string         `json:"imagePrompt"`
	FusionImage    string         `json:"fusionImage"`
	OriginalImages OriginalImages `json:"originalImages"`
}

// Complete reports whether every field of the result is populated.
func (r FusionResult) Complete() bool {
	return r.Name != "" && r.Description != "" && r.Level != "" && r.Type != "" &&
		r.ImagePrompt != "" && r.FusionImage != "" &&
		r.OriginalImages.A != "" && r.OriginalImages.B != ""
}
