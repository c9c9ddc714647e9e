package model

import "testing"

func TestMessageTypeValid(t *testing.T) {
	for _, mt := range []MessageType{MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeSystem} {
		if !mt.Valid() {
			t.Errorf("%s should be valid", mt)
		}
	}
	if MessageType("sticker").Valid() {
		t.Error("unknown type accepted")
	}
	if MessageType("").Valid() {
		t.Error("empty type accepted")
	}
}

func TestMessageBody(t *testing.T) {
	text := Message{Type: MessageTypeText, Content: []string{"hello", "world"}}
	if body, ok := text.Body().(TextBody); !ok || len(body.Segments) != 2 {
		t.Fatalf("text body = %#v", text.Body())
	}

	system := Message{Type: MessageTypeSystem, Content: []string{"pat joined the group"}}
	if body, ok := system.Body().(SystemBody); !ok || body.Text != "pat joined the group" {
		t.Fatalf("system body = %#v", system.Body())
	}

	image := Message{Type: MessageTypeImage, Content: []string{"https://cdn.test/a.png", "https://cdn.test/b.png"}}
	body, ok := image.Body().(AttachmentBody)
	if !ok {
		t.Fatalf("attachment body = %#v", image.Body())
	}
	if body.Kind != MessageTypeImage || len(body.URLs) != 2 {
		t.Fatalf("attachment body = %#v", body)
	}
}

func TestMessagePreview(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want string
	}{
		{"text", Message{Type: MessageTypeText, Content: []string{"first line", "second"}}, "first line"},
		{"empty text", Message{Type: MessageTypeText}, ""},
		{"system", Message{Type: MessageTypeSystem, Content: []string{"pat left the group"}}, "pat left the group"},
		{"image", Message{Type: MessageTypeImage, Content: []string{"https://cdn.test/a.png"}}, "[Non-text]"},
		{"file", Message{Type: MessageTypeFile, Content: []string{"https://cdn.test/doc.pdf"}}, "[Non-text]"},
		{"audio", Message{Type: MessageTypeAudio, Content: []string{"https://cdn.test/v.ogg"}}, "[Non-text]"},
	}
	for _, tc := range cases {
		if got := tc.msg.Preview(); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
