package agents

import "testing"

func TestHeadless(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"browser", nil, false},
		{"filters only", []string{"--municipality", "Gent", "--sort=category"}, false},
		{"robot query", []string{"--robot-query"}, true},
		{"single dash", []string{"-robot-query"}, true},
		{"csv export with value", []string{"--export-csv=out.csv"}, true},
		{"wizard stays interactive", []string{"--export-wizard"}, false},
		{"wizard then export", []string{"--export-wizard", "--export-md", "out.md"}, true},
		{"list recipes", []string{"--list-recipes"}, true},
		{"version", []string{"-version"}, true},
		{"short help", []string{"-h"}, true},
		{"value is not a flag", []string{"--search", "version"}, false},
		{"after terminator", []string{"--", "--robot-query"}, false},
		{"bare dashes", []string{"-", "---"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := headless(tt.args); got != tt.want {
				t.Errorf("headless(%q) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestHeadlessEnv(t *testing.T) {
	t.Setenv("BK_TEST_MODE", "")
	t.Setenv("BK_ROBOT", "")
	if headlessEnv() {
		t.Error("empty environment reported headless")
	}
	t.Setenv("BK_ROBOT", "1")
	if !headlessEnv() {
		t.Error("BK_ROBOT=1 not reported headless")
	}
	t.Setenv("BK_ROBOT", "0")
	t.Setenv("BK_TEST_MODE", "1")
	if !headlessEnv() {
		t.Error("BK_TEST_MODE not reported headless")
	}
}
