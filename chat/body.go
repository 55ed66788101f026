package chat

// BodyType tags the variant carried by a message body.
type BodyType string

const (
	BodyText     BodyType = "text"
	BodyImage    BodyType = "image"
	BodyVideo    BodyType = "video"
	BodyVoice    BodyType = "voice"
	BodyFile     BodyType = "file"
	BodyLocation BodyType = "location"
	BodyCommand  BodyType = "command"
	BodyCustom   BodyType = "custom"
	BodyCombine  BodyType = "combine"
	BodyRecall   BodyType = "recall"
)

// Body is a closed tagged union over message body variants. Exactly one
// variant field is non-nil and it matches Type.
type Body struct {
	Type BodyType `json:"type"`

	Text     *TextBody     `json:"text,omitempty"`
	Image    *ImageBody    `json:"image,omitempty"`
	Video    *VideoBody    `json:"video,omitempty"`
	Voice    *VoiceBody    `json:"voice,omitempty"`
	File     *FileBody     `json:"file,omitempty"`
	Location *LocationBody `json:"location,omitempty"`
	Command  *CommandBody  `json:"command,omitempty"`
	Custom   *CustomBody   `json:"custom,omitempty"`
	Combine  *CombineBody  `json:"combine,omitempty"`
	Recall   *RecallBody   `json:"recall,omitempty"`
}

// TextBody is a plain text message.
type TextBody struct {
	Content string `json:"content"`
	// Translations maps target language code to translated content.
	Translations map[string]string `json:"translations,omitempty"`
}

// AttachmentBody holds the fields shared by file-backed variants. A valid
// attachment has a display name and at least one of LocalPath/RemotePath.
type AttachmentBody struct {
	DisplayName string `json:"display_name"`
	LocalPath   string `json:"local_path,omitempty"`
	RemotePath  string `json:"remote_path,omitempty"`
	Secret      string `json:"secret,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	Downloaded  bool   `json:"downloaded,omitempty"`
}

// ImageBody is an image attachment with optional thumbnail dimensions.
type ImageBody struct {
	AttachmentBody
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// VideoBody is a video attachment.
type VideoBody struct {
	AttachmentBody
	Duration      int    `json:"duration,omitempty"` // seconds
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// VoiceBody is a voice recording attachment.
type VoiceBody struct {
	AttachmentBody
	Duration int  `json:"duration,omitempty"` // seconds
	Listened bool `json:"listened,omitempty"`
}

// FileBody is a generic file attachment.
type FileBody struct {
	AttachmentBody
}

// LocationBody is a geographic coordinate with an address label.
type LocationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	BuildingN string  `json:"building_name,omitempty"`
}

// CommandBody is a transparent command message, never shown to users.
type CommandBody struct {
	Action string `json:"action"`
	// DeliverOnlineOnly suppresses offline delivery for this command.
	DeliverOnlineOnly bool `json:"deliver_online_only,omitempty"`
}

// CustomBody carries an application-defined event with string parameters.
type CustomBody struct {
	Event  string            `json:"event"`
	Params map[string]string `json:"params,omitempty"`
}

// CombineBody references a forwarded bundle of messages.
type CombineBody struct {
	AttachmentBody
	Title      string   `json:"title,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

// RecallBody replaces the original body of a recalled message. The original
// body is retained as a snapshot so clients can render "you recalled a
// message" style placeholders with context.
type RecallBody struct {
	RecalledBy string `json:"recalled_by"`
	RecallTime int64  `json:"recall_time"`
	Original   *Body  `json:"original,omitempty"`
}

// NewTextBody builds a text body.
func NewTextBody(content string) Body {
	return Body{Type: BodyText, Text: &TextBody{Content: content}}
}

// NewLocationBody builds a location body.
func NewLocationBody(lat, lon float64, address string) Body {
	return Body{Type: BodyLocation, Location: &LocationBody{Latitude: lat, Longitude: lon, Address: address}}
}

// NewFileBody builds a file body from a local path.
func NewFileBody(displayName, localPath string) Body {
	return Body{Type: BodyFile, File: &FileBody{AttachmentBody: AttachmentBody{DisplayName: displayName, LocalPath: localPath}}}
}

// NewCommandBody builds a command body.
func NewCommandBody(action string) Body {
	return Body{Type: BodyCommand, Command: &CommandBody{Action: action}}
}

// NewCustomBody builds a custom body.
func NewCustomBody(event string, params map[string]string) Body {
	return Body{Type: BodyCustom, Custom: &CustomBody{Event: event, Params: params}}
}

// Attachment returns the shared attachment fields for file-backed variants,
// or nil for non-attachment bodies.
func (b *Body) Attachment() *AttachmentBody {
	switch b.Type {
	case BodyImage:
		if b.Image != nil {
			return &b.Image.AttachmentBody
		}
	case BodyVideo:
		if b.Video != nil {
			return &b.Video.AttachmentBody
		}
	case BodyVoice:
		if b.Voice != nil {
			return &b.Voice.AttachmentBody
		}
	case BodyFile:
		if b.File != nil {
			return &b.File.AttachmentBody
		}
	case BodyCombine:
		if b.Combine != nil {
			return &b.Combine.AttachmentBody
		}
	}
	return nil
}

// Validate checks that the tag matches the populated variant and that the
// variant's required fields are present.
func (b *Body) Validate() error {
	const op = "chat.body_validate"
	switch b.Type {
	case BodyText:
		if b.Text == nil {
			return Errf(KindInvalidParameter, op, "text body missing variant")
		}
	case BodyLocation:
		if b.Location == nil {
			return Errf(KindInvalidParameter, op, "location body missing variant")
		}
		if b.Location.Latitude < -90 || b.Location.Latitude > 90 ||
			b.Location.Longitude < -180 || b.Location.Longitude > 180 {
			return Errf(KindInvalidParameter, op, "coordinates out of range: %f,%f", b.Location.Latitude, b.Location.Longitude)
		}
	case BodyCommand:
		if b.Command == nil || b.Command.Action == "" {
			return Errf(KindInvalidParameter, op, "command body requires an action")
		}
	case BodyCustom:
		if b.Custom == nil || b.Custom.Event == "" {
			return Errf(KindInvalidParameter, op, "custom body requires an event")
		}
	case BodyImage, BodyVideo, BodyVoice, BodyFile, BodyCombine:
		att := b.Attachment()
		if att == nil {
			return Errf(KindInvalidParameter, op, "%s body missing variant", b.Type)
		}
		if att.DisplayName == "" {
			return Errf(KindInvalidParameter, op, "%s body requires a display name", b.Type)
		}
		if att.LocalPath == "" && att.RemotePath == "" {
			return Errf(KindInvalidParameter, op, "%s body requires a local or remote path", b.Type)
		}
	case BodyRecall:
		if b.Recall == nil || b.Recall.RecalledBy == "" {
			return Errf(KindInvalidParameter, op, "recall body requires the recalling user")
		}
	default:
		return Errf(KindInvalidParameter, op, "unknown body type %q", b.Type)
	}
	return nil
}

// Preview renders a short human-readable summary used for conversation
// list previews.
func (b *Body) Preview() string {
	switch b.Type {
	case BodyText:
		if b.Text != nil {
			return b.Text.Content
		}
	case BodyImage:
		return "[image]"
	case BodyVideo:
		return "[video]"
	case BodyVoice:
		return "[voice]"
	case BodyFile:
		return "[file]"
	case BodyLocation:
		return "[location]"
	case BodyCommand:
		return ""
	case BodyCustom:
		return "[custom]"
	case BodyCombine:
		return "[chat history]"
	case BodyRecall:
		return "[recalled]"
	}
	return ""
}
