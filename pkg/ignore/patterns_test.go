package ignore

import "testing"

func TestShouldIgnore(t *testing.T) {
	m := NewMatcher(nil)

	tests := []struct {
		path string
		want bool
	}{
		{"node_modules/react/index.js", true},
		{"src/node_modules/lib/x.js", true},
		{"target/classes/Main.class", true},
		{"web/assets/app.min.js", true},
		{"web/assets/app.js.map", true},
		{"package-lock.json", true},
		{"api/service.pb.go", true},
		{"proto/service_pb2.py", true},
		{".git/config", true},
		{"src/main.py", false},
		{"internal/server/server.go", false},
		{"lib/utils.ts", false},
		{"README.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := m.ShouldIgnore(tt.path); got != tt.want {
				t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtraPatterns(t *testing.T) {
	m := NewMatcher([]string{"docs/**", "*.snap"})

	if !m.ShouldIgnore("docs/guide.md") {
		t.Errorf("extra directory pattern not applied")
	}
	if !m.ShouldIgnore("tests/__snapshots__/a.snap") {
		t.Errorf("extra suffix pattern not applied")
	}
	if m.ShouldIgnore("src/docs.go") {
		t.Errorf("false positive on src/docs.go")
	}
}
