package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"development", EnvDevelopment},
		{"staging", EnvStaging},
		{"production", EnvProduction},
		{" Production ", EnvProduction},
		{"", EnvDevelopment},
		{"invalid", EnvDevelopment},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseEnvironment(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEnvironment_IsProduction(t *testing.T) {
	if !EnvProduction.IsProduction() {
		t.Error("expected production to be production")
	}
	if EnvStaging.IsProduction() {
		t.Error("expected staging not to be production")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("FK_TEST_BOOL", tt.val)
			if got := getEnvBool("FK_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("FK_TEST_INT", "42")
	if got := getEnvInt("FK_TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	t.Setenv("FK_TEST_INT", "not-a-number")
	if got := getEnvInt("FK_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7 for invalid value, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"5m", 5 * time.Minute},
		{"45", 45 * time.Second},
		{"", time.Hour},
		{"soon", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("FK_TEST_DURATION", tt.val)
			if got := getEnvDuration("FK_TEST_DURATION", time.Hour); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("FK_TEST_LIST", " b1, ,b2 ,b3,")
	want := []string{"b1", "b2", "b3"}
	if got := getEnvList("FK_TEST_LIST", nil); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	t.Setenv("FK_TEST_LIST", "  ")
	if got := getEnvList("FK_TEST_LIST", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("expected default for blank list, got %v", got)
	}
}
