package transport

// Content is the message payload. Exactly one variant is normally set; the
// ViewOnce wrapper marks content intended for a single display.
type Content struct {
	Conversation string
	ExtendedText *ExtendedText
	Image        *Media
	Video        *Media
	ViewOnce     *Content
}

type ExtendedText struct {
	Text string
}

type Media struct {
	Caption string
}

// TextContent builds a plain-text payload.
func TextContent(text string) *Content {
	return &Content{Conversation: text}
}

// Text extracts the best-effort plain-text body: conversation text, extended
// text, then image or video caption, empty when none apply.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	if c.Conversation != "" {
		return c.Conversation
	}
	if c.ExtendedText != nil && c.ExtendedText.Text != "" {
		return c.ExtendedText.Text
	}
	if c.Image != nil && c.Image.Caption != "" {
		return c.Image.Caption
	}
	if c.Video != nil && c.Video.Caption != "" {
		return c.Video.Caption
	}
	return ""
}
