package flagparse

import "testing"

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		input   string
		want    Command
		wantErr bool
	}{
		{"plan", CommandPlan, false},
		{"APPLY", CommandApply, false},
		{"init", CommandInit, false},
		{"version", CommandVersion, false},
		{"none", CommandNone, true},
		{"bogus", CommandNone, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseCommand(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCommand(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseCommand(%q) = %v; want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	if got := CommandApply.String(); got != "apply" {
		t.Errorf("CommandApply.String() = %q; want %q", got, "apply")
	}
	if got := Command(99).String(); got != "unknown(99)" {
		t.Errorf("Command(99).String() = %q; want %q", got, "unknown(99)")
	}
}

func TestParsePlanFlags(t *testing.T) {
	cmd, opts, err := Parse([]string{"plan", "-config", "job.yaml", "-out", "plan.json.gz", "-compact", "-log-level", "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != CommandPlan {
		t.Errorf("expected plan command, got %v", cmd)
	}
	if opts.ConfigPath != "job.yaml" {
		t.Errorf("unexpected config path: %q", opts.ConfigPath)
	}
	if opts.Out != "plan.json.gz" {
		t.Errorf("unexpected out path: %q", opts.Out)
	}
	if !opts.Compact {
		t.Error("expected compact to be set")
	}
	if opts.LogLevel != "debug" {
		t.Errorf("unexpected log level: %q", opts.LogLevel)
	}
}

func TestParseApplyDefaults(t *testing.T) {
	cmd, opts, err := Parse([]string{"apply"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != CommandApply {
		t.Errorf("expected apply command, got %v", cmd)
	}
	if opts.ConfigPath != "netmirror.yaml" {
		t.Errorf("unexpected default config path: %q", opts.ConfigPath)
	}
	if !opts.Metrics {
		t.Error("expected metrics to default to on")
	}
}

func TestParseInit(t *testing.T) {
	cmd, opts, err := Parse([]string{"init", "-path", "custom.yaml", "-force"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != CommandInit {
		t.Errorf("expected init command, got %v", cmd)
	}
	if opts.Path != "custom.yaml" || !opts.Force {
		t.Errorf("unexpected init options: %+v", opts)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"No Command", nil},
		{"Unknown Command", []string{"destroy"}},
		{"Unknown Flag", []string{"plan", "-bogus"}},
		{"Stray Argument", []string{"plan", "stray"}},
		{"Version With Args", []string{"version", "extra"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Parse(tc.args); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
