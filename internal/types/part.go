package types

import "encoding/base64"

// Part roles, in the order they may appear in a composed prompt.
const (
	RoleInstruction = "instruction"
	RoleReference   = "reference"
	RoleMaterial    = "material"
	RoleContext     = "context"
	RoleChart       = "chart"
	RoleBoard       = "board"
	RoleMemo        = "memo"
)

// Part kinds.
const (
	PartText  = "text"
	PartImage = "image"
)

// Inference request kinds.
const (
	KindSummarize = "summarize"
	KindJudge     = "judge"
)

// Part is one typed element of a multimodal prompt.
type Part struct {
	Role string
	Kind string
	Text string
	MIME string
	Data []byte
}

// TextPart builds a text part.
func TextPart(role, text string) Part {
	return Part{Role: role, Kind: PartText, Text: text}
}

// ImagePart builds an image part from an encoded image.
func ImagePart(role, mime string, data []byte) Part {
	return Part{Role: role, Kind: PartImage, MIME: mime, Data: data}
}

// DataURL returns the image part as a base64 data URL.
func (p Part) DataURL() string {
	return "data:" + p.MIME + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// InferenceRequest is handed to the inference collaborator.
type InferenceRequest struct {
	Kind   string
	Symbol string
	Parts  []Part
}
