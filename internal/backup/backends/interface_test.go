package backends

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{name: "empty defaults to gcs", input: "", want: KindGCS},
		{name: "gcs", input: "gcs", want: KindGCS},
		{name: "s3", input: "s3", want: KindS3},
		{name: "case and whitespace", input: "  S3 ", want: KindS3},
		{name: "unsupported", input: "azure", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_UnsupportedKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "dropbox"}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for unsupported backend")
	}
	if !strings.Contains(err.Error(), "unsupported destination backend") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{
			name:   "gcs without project",
			cfg:    Config{Kind: KindGCS},
			errMsg: "project_id is required",
		},
		{
			name:   "s3 without credentials",
			cfg:    Config{Kind: KindS3},
			errMsg: "access_key_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, zerolog.Nop())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}
