package utils

import "testing"

func TestSafeEnv(t *testing.T) {
	const key = "_VOX_TEST_SAFEENV"
	t.Setenv(key, "")
	if got := SafeEnv(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv(key, "   ")
	if got := SafeEnv(key, "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
	t.Setenv(key, " value ")
	if got := SafeEnv(key, "fallback"); got != "value" {
		t.Fatalf("expected 'value', got %q", got)
	}
}

func TestEnvAddsPrefix(t *testing.T) {
	t.Setenv("VOX_TEST_ENV_NAME", "set")
	if got := Env("test_env_name", ""); got != "set" {
		t.Fatalf("expected prefixed lookup, got %q", got)
	}
	if got := Env("TEST_ENV_MISSING", "dflt"); got != "dflt" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
