package chat

import "testing"

func TestBodyValidate(t *testing.T) {
	cases := []struct {
		name string
		body Body
		ok   bool
	}{
		{"text", NewTextBody("hi"), true},
		{"text missing variant", Body{Type: BodyText}, false},
		{"location", NewLocationBody(51.5, -0.12, "London"), true},
		{"location out of range", NewLocationBody(120, 0, ""), false},
		{"command", NewCommandBody("typing"), true},
		{"command without action", Body{Type: BodyCommand, Command: &CommandBody{}}, false},
		{"custom", NewCustomBody("poll", nil), true},
		{"custom without event", Body{Type: BodyCustom, Custom: &CustomBody{}}, false},
		{"file with local path", NewFileBody("doc.pdf", "/tmp/doc.pdf"), true},
		{"file without any path", Body{Type: BodyFile, File: &FileBody{AttachmentBody: AttachmentBody{DisplayName: "doc"}}}, false},
		{"file without display name", Body{Type: BodyFile, File: &FileBody{AttachmentBody: AttachmentBody{LocalPath: "/tmp/x"}}}, false},
		{"image with remote path", Body{Type: BodyImage, Image: &ImageBody{AttachmentBody: AttachmentBody{DisplayName: "pic", RemotePath: "remote://x"}}}, true},
		{"recall", Body{Type: BodyRecall, Recall: &RecallBody{RecalledBy: "alice"}}, true},
		{"recall without user", Body{Type: BodyRecall, Recall: &RecallBody{}}, false},
		{"unknown type", Body{Type: "smoke-signal"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.body.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !IsKind(err, KindInvalidParameter) {
				t.Errorf("err = %v, want invalid parameter", err)
			}
		})
	}
}

func TestAttachmentAccessor(t *testing.T) {
	file := NewFileBody("doc.pdf", "/tmp/doc.pdf")
	att := file.Attachment()
	if att == nil || att.DisplayName != "doc.pdf" {
		t.Fatalf("attachment = %+v", att)
	}

	// Mutations through the accessor stick.
	att.RemotePath = "remote://abc"
	if file.File.RemotePath != "remote://abc" {
		t.Error("accessor should alias the variant's fields")
	}

	text := NewTextBody("hi")
	if text.Attachment() != nil {
		t.Error("text body has no attachment")
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		body Body
		want string
	}{
		{NewTextBody("hello there"), "hello there"},
		{NewFileBody("doc.pdf", "/tmp/doc.pdf"), "[file]"},
		{NewLocationBody(0, 0, ""), "[location]"},
		{NewCommandBody("typing"), ""},
		{Body{Type: BodyRecall, Recall: &RecallBody{RecalledBy: "a"}}, "[recalled]"},
	}
	for _, tc := range cases {
		if got := tc.body.Preview(); got != tc.want {
			t.Errorf("Preview(%s) = %q, want %q", tc.body.Type, got, tc.want)
		}
	}
}

func TestMessageCompareTime(t *testing.T) {
	m := &Message{ServerTime: 9000, LocalTime: 5000}
	if got := m.CompareTime(true); got != 9000 {
		t.Errorf("server-sorted = %d, want 9000", got)
	}
	if got := m.CompareTime(false); got != 5000 {
		t.Errorf("local-sorted = %d, want 5000", got)
	}

	// No server time yet: fall back to local time either way.
	m.ServerTime = 0
	if got := m.CompareTime(true); got != 5000 {
		t.Errorf("unacked server-sorted = %d, want 5000", got)
	}
}

func TestNewMessageDefaults(t *testing.T) {
	m := NewMessage("peer", ChatTypeOneToOne, "self", "peer", NewTextBody("hi"), nil)
	if m.ID == "" {
		t.Error("ID should be generated")
	}
	if m.Status != StatusPending {
		t.Errorf("status = %s, want pending", m.Status)
	}
	if m.Direction != DirectionSend {
		t.Errorf("direction = %d, want send", m.Direction)
	}
	if m.LocalTime == 0 {
		t.Error("local time should be stamped")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("fresh message should validate: %v", err)
	}
}
