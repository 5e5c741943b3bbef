package drain

import (
	"errors"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func TestLookupEncoding(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
	}{
		{name: "", wantName: "utf-8"},
		{name: "utf-8", wantName: "utf-8"},
		{name: "UTF-8", wantName: "utf-8"},
		{name: "shift_jis", wantName: "shift_jis"},
		{name: "windows-1252", wantName: "windows-1252"},
		{name: "euc-jp", wantName: "euc-jp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := LookupEncoding(tt.name)
			if err != nil {
				t.Fatalf("LookupEncoding(%q) failed: %v", tt.name, err)
			}
			if got := EncodingName(enc); got != tt.wantName {
				t.Errorf("EncodingName = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestLookupEncoding_Unknown(t *testing.T) {
	_, err := LookupEncoding("klingon-8")
	if !errors.Is(err, ErrUnknownEncoding) {
		t.Errorf("error = %v, want ErrUnknownEncoding", err)
	}
}

func TestEncodingName_Nil(t *testing.T) {
	if got := EncodingName(nil); got != DefaultEncoding {
		t.Errorf("EncodingName(nil) = %q, want %q", got, DefaultEncoding)
	}
	if got := EncodingName(unicode.UTF8); got != "utf-8" {
		t.Errorf("EncodingName(UTF8) = %q, want utf-8", got)
	}
}
