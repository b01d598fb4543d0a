package message

// InboundMessage is the provider-independent view of one inbound WhatsApp text.
type InboundMessage struct {
	RemoteJid  string `json:"remote_jid"`
	Text       string `json:"text"`
	IsSelfEcho bool   `json:"is_self_echo"`
	IsGroup    bool   `json:"is_group"`
	PushName   string `json:"push_name,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Event      string `json:"event,omitempty"`
}

type FragmentKind string

const (
	FragmentText     FragmentKind = "text"
	FragmentImage    FragmentKind = "image"
	FragmentVideo    FragmentKind = "video"
	FragmentAudio    FragmentKind = "audio"
	FragmentDocument FragmentKind = "document"
)

// IsMedia reports whether the fragment is delivered through a media endpoint.
func (k FragmentKind) IsMedia() bool {
	switch k {
	case FragmentImage, FragmentVideo, FragmentAudio, FragmentDocument:
		return true
	}
	return false
}

// ReplyFragment is one unit of an engine reply.
type ReplyFragment struct {
	Kind     FragmentKind `json:"kind"`
	Content  string       `json:"content"`
	MediaURL string       `json:"media_url,omitempty"`
}

func Text(s string) ReplyFragment {
	return ReplyFragment{Kind: FragmentText, Content: s}
}
