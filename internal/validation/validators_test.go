package validation

import (
	"strings"
	"testing"
)

func TestStruct_CreatePostRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     CreatePostRequest
		wantErr string
	}{
		{name: "valid", req: CreatePostRequest{PlatformID: "instagram", Name: "Launch"}},
		{name: "unknown platform", req: CreatePostRequest{PlatformID: "myspace", Name: "Launch"}, wantErr: "invalid platform_id"},
		{name: "missing name", req: CreatePostRequest{PlatformID: "x"}, wantErr: "name is required"},
		{name: "name too long", req: CreatePostRequest{PlatformID: "x", Name: strings.Repeat("n", 201)}, wantErr: "at most 200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Struct(tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Struct() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Struct() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStruct_ImageUpload(t *testing.T) {
	t.Parallel()

	if err := Struct(ImageUpload{Name: "a.png", MIMEType: "image/png", Size: 10}); err != nil {
		t.Errorf("valid upload rejected: %v", err)
	}
	if err := Struct(ImageUpload{Name: "a.pdf", MIMEType: "application/pdf", Size: 10}); err == nil {
		t.Error("pdf upload accepted")
	}
	if err := Struct(ImageUpload{Name: "a.png", MIMEType: "image/png"}); err == nil {
		t.Error("empty upload accepted")
	}
}

func TestIsAllowedImageType(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"image/png":               true,
		"IMAGE/JPEG":              true,
		"image/webp; charset=foo": true,
		"image/svg+xml":           false,
		"text/plain":              false,
		"":                        false,
	}
	for in, want := range tests {
		if got := IsAllowedImageType(in); got != want {
			t.Errorf("IsAllowedImageType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"shot.png", "shot.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\shot 1.png`, "shot 1.png"},
		{"bad\x00name.png", "badname.png"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	if got := SanitizeText("  Spring\x07 launch\n "); got != "Spring launch" {
		t.Errorf("SanitizeText() = %q", got)
	}
}
