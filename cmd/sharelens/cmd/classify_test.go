package cmd

import (
	"strings"
	"testing"

	"github.com/abramin/sharelens/internal/config"
)

func TestSelectPass(t *testing.T) {
	one := &config.Config{Passes: []config.PassConfig{{Name: "api"}}}
	two := &config.Config{Passes: []config.PassConfig{{Name: "api"}, {Name: "admin"}}}

	tests := []struct {
		name    string
		cfg     *config.Config
		pass    string
		want    string
		wantErr string
	}{
		{"only pass by default", one, "", "api", ""},
		{"named pass", two, "admin", "admin", ""},
		{"several passes need a name", two, "", "", "--pass is required, one of: api, admin"},
		{"unknown pass", one, "web", "", `unknown pass "web"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := selectPass(tt.cfg, tt.pass)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pc.Name != tt.want {
				t.Errorf("expected pass %s, got %s", tt.want, pc.Name)
			}
		})
	}
}
