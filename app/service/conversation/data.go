package conversation

import (
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
)

const (
	SenderUser       = "user"
	SenderSupervisor = "supervisor"
)

type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
)

// ImageRef points at an attachment without carrying its bytes.
type ImageRef struct {
	Ref      string `json:"ref"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

type Content struct {
	Kind  ContentKind `json:"kind"`
	Text  string      `json:"text"`
	Image *ImageRef   `json:"image,omitempty"`
}

func Text(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

func Image(text string, ref ImageRef) Content {
	return Content{Kind: ContentImage, Text: text, Image: &ref}
}

// ToolStep is one capability call made by a responder while building its answer.
type ToolStep struct {
	Capability string
	Args       string
	Success    bool
	Output     string
}

type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// ToolTrace is visible only to the responder that produced it.
	ToolTrace []ToolStep `json:"-"`
}

func NewMessage(sender string, content Content) Message {
	return Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func (m Message) FromUser() bool {
	return m.Sender == SenderUser
}

type Attachment struct {
	Data     []byte
	MIMEType string
}

// Ref is the blake3 content hash of the attachment.
func (a *Attachment) Ref() string {
	sum := blake3.Sum256(a.Data)
	return hex.EncodeToString(sum[:])
}

func (a *Attachment) ImageRef() ImageRef {
	return ImageRef{
		Ref:      a.Ref(),
		MIMEType: a.MIMEType,
		Size:     len(a.Data),
	}
}
