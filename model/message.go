package model

// Headers holds the four envelope fields the extractor cares about. Values in
// a RawEmail may still be MIME encoded; in a NormalizedEmail they are decoded.
type Headers struct {
	Subject string
	From    string
	To      string
	Date    string
}

// BodyPart is a single text part as found in the container, before charset
// resolution.
type BodyPart struct {
	ContentType     string
	Payload         []byte
	DeclaredCharset string

	// DecodedText is set when the container library already produced text
	// instead of bytes. FromLibrary marks such text as possibly mis-decoded.
	DecodedText string
	FromLibrary bool
}

// HasText reports whether the part carries already decoded text.
func (p BodyPart) HasText() bool {
	return p.FromLibrary || p.DecodedText != ""
}

// RawAttachment is an attachment whose filename has not been decoded yet.
type RawAttachment struct {
	Filename        string
	FilenameCharset string
	Data            []byte
}

// Attachment is an attachment with a decoded filename.
type Attachment struct {
	Filename string
	Data     []byte
}

// RawEmail is what a container reader produces. It is not modified after
// construction.
type RawEmail struct {
	Source      string
	Index       int
	InArchive   bool
	Headers     Headers
	BodyParts   []BodyPart
	Attachments []RawAttachment
}

// NormalizedEmail is a RawEmail with every string decoded.
type NormalizedEmail struct {
	Source      string
	Index       int
	InArchive   bool
	Headers     Headers
	Body        string
	BodyHTML    string
	Attachments []Attachment
}

// MessageSegment is one logical message of a thread. Only the segment with
// ThreadIndex 0 carries attachments.
type MessageSegment struct {
	Headers     Headers
	BodyText    string
	ThreadIndex int
	Attachments []Attachment
}

// Envelope wraps an email alongside an optional error encountered while reading it.
type Envelope struct {
	Email RawEmail
	Err   error
}
