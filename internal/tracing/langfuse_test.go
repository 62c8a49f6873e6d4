package tracing

import (
	"context"
	"testing"
)

func TestSettingsFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantHost    string
		wantEnabled bool
	}{
		{
			name:     "unset",
			env:      map[string]string{"LANGFUSE_HOST": "", "LANGFUSE_PUBLIC_KEY": "", "LANGFUSE_SECRET_KEY": ""},
			wantHost: DefaultHost,
		},
		{
			name:     "public key only",
			env:      map[string]string{"LANGFUSE_HOST": "", "LANGFUSE_PUBLIC_KEY": "pk", "LANGFUSE_SECRET_KEY": ""},
			wantHost: DefaultHost,
		},
		{
			name:        "both keys and host",
			env:         map[string]string{"LANGFUSE_HOST": "https://lf.example.com", "LANGFUSE_PUBLIC_KEY": "pk", "LANGFUSE_SECRET_KEY": "sk"},
			wantHost:    "https://lf.example.com",
			wantEnabled: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			s := SettingsFromEnv()
			if s.Host != tc.wantHost {
				t.Errorf("Host = %q, want %q", s.Host, tc.wantHost)
			}
			if s.Enabled() != tc.wantEnabled {
				t.Errorf("Enabled = %v, want %v", s.Enabled(), tc.wantEnabled)
			}
		})
	}
}

func TestEnable_DisabledReturnsNoop(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	flush := Enable(context.Background())
	if flush == nil {
		t.Fatal("flush must not be nil")
	}
	flush()
}
