package utils

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"whatsapp:+56912345678", "+56912345678"},
		{"56912345678", "+56912345678"},
		{" +56 9 1234-5678 ", "+56912345678"},
		{"+56912345678", "+56912345678"},
		{"web_abc", "web_abc"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("+56912345678"); got != "********5678" {
		t.Errorf("MaskPhone = %q", got)
	}
	if got := MaskPhone("123"); got != "123" {
		t.Errorf("MaskPhone short = %q", got)
	}
}
