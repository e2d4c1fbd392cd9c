package util

import (
	"errors"
	"strings"
	"testing"
)

func TestOwnerKey(t *testing.T) {
	got := OwnerKey("google:12345")
	if got != OwnerKey("google:12345") {
		t.Fatalf("expected stable key, got %s", got)
	}
	if got == OwnerKey("guest:12345") {
		t.Fatalf("expected distinct keys for distinct users")
	}
	if len(got) != 32 {
		t.Fatalf("expected 32 hex characters, got %d", len(got))
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("key contains non-hex character: %c", ch)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	long := strings.Repeat("a", 200) + ".pdf"

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "resume.pdf", want: "resume.pdf"},
		{name: "separators", in: "dir/sub\\cv.docx", want: "dir_sub_cv.docx"},
		{name: "spaces", in: "  my cv.pdf ", want: "my_cv.pdf"},
		{name: "control chars", in: "cv\x00\x07.txt", want: "cv.txt"},
		{name: "traversal", in: "../etc/passwd", wantErr: true},
		{name: "empty", in: "   ", wantErr: true},
		{name: "only separators", in: "///", wantErr: true},
		{name: "long keeps extension", in: long, want: strings.Repeat("a", maxFileNameLen-4) + ".pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFileName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFileName) {
					t.Fatalf("expected ErrInvalidFileName, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
