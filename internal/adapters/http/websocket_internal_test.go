package http

import "testing"

func TestEventSubject(t *testing.T) {
	tests := []struct {
		msg     eventMessage
		want    string
		wantErr bool
	}{
		{eventMessage{Channel: "states"}, "tracking.state.>", false},
		{eventMessage{Channel: "", Session: "s1"}, "tracking.state.s1", false},
		{eventMessage{Channel: "prompts", Session: "s1"}, "tracking.prompt.s1", false},
		{eventMessage{Channel: "matches", Session: "ignored"}, "match.success", false},
		{eventMessage{Channel: "vehicles"}, "", true},
		{eventMessage{Channel: "states", Session: "*"}, "", true},
		{eventMessage{Channel: "states", Session: "x.>"}, "", true},
		{eventMessage{Channel: "prompts", Session: "a.b"}, "", true},
		{eventMessage{Channel: "prompts", Session: ">"}, "", true},
	}
	for _, tt := range tests {
		got, err := eventSubject(tt.msg)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("eventSubject(%+v) = %q, %v; want %q, err=%v", tt.msg, got, err, tt.want, tt.wantErr)
		}
	}
}
