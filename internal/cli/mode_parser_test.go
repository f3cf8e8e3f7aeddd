package cli

import (
	"reflect"
	"testing"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		wantMode string
		wantRest []string
	}{
		{
			name:     "mode flag",
			args:     []string{"--mode=order-service", "--port=8080"},
			wantMode: ModeService,
			wantRest: []string{"--port=8080"},
		},
		{
			name:     "subcommand shorthand",
			args:     []string{"order-worker", "--prefetch=4"},
			wantMode: ModeWorker,
			wantRest: []string{"--prefetch=4"},
		},
		{
			name:     "alias",
			args:     []string{"worker"},
			wantMode: ModeWorker,
			wantRest: nil,
		},
		{
			name:     "no mode",
			args:     []string{"--port=8080"},
			wantMode: "",
			wantRest: []string{"--port=8080"},
		},
		{
			name:     "unknown word passes through",
			args:     []string{"bogus", "--port=8080"},
			wantMode: "",
			wantRest: []string{"bogus", "--port=8080"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mode, rest, err := ParseMode(tc.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mode != tc.wantMode {
				t.Fatalf("expected mode %q, got %q", tc.wantMode, mode)
			}
			if !reflect.DeepEqual(rest, tc.wantRest) {
				t.Fatalf("expected rest %v, got %v", tc.wantRest, rest)
			}
		})
	}
}
