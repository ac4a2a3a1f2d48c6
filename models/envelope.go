package models

// InlineEnvelope is the caller-facing success result: the converted bytes
// packaged for inline transmission to a downstream multimodal consumer,
// rather than a fetchable reference. Data is base64 on the wire
// (encoding/json encodes []byte that way).
type InlineEnvelope struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
	Inline   bool   `json:"inline"`
}

// NewInlineEnvelope wraps final bytes with their MIME type. It performs no
// compression decisions; by the time bytes reach here they already satisfy
// the size budget.
func NewInlineEnvelope(data []byte, mimeType string) InlineEnvelope {
	return InlineEnvelope{Data: data, MimeType: mimeType, Inline: true}
}
