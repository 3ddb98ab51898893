package models

import (
	"strings"
	"testing"
)

func TestDocIDs(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{
			name: "repo",
			id:   RepoDocID("acme", "owner/repo"),
			want: "acme:owner/repo:repo_summary:owner/repo",
		},
		{
			name: "root module",
			id:   ModuleDocID("acme", "owner/repo", ""),
			want: "acme:owner/repo:module_summary:",
		},
		{
			name: "file",
			id:   FileDocID("acme", "owner/repo", "src/util.py"),
			want: "acme:owner/repo:file_index:src/util.py",
		},
		{
			name: "method symbol",
			id:   SymbolDocID("acme", "owner/repo", "src/util.py", "Greeter.hello"),
			want: "acme:owner/repo:symbol_index:src/util.py::Greeter.hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.id != tt.want {
				t.Errorf("got %q, want %q", tt.id, tt.want)
			}
		})
	}
}

func TestParseDocID(t *testing.T) {
	id := SymbolDocID("acme", "owner/repo", "a/b.py", "Cls.m")
	tenant, repo, typ, key, ok := ParseDocID(id)
	if !ok {
		t.Fatalf("ParseDocID(%q) not ok", id)
	}
	if tenant != "acme" || repo != "owner/repo" || typ != DocTypeSymbolIndex {
		t.Errorf("unexpected segments: %q %q %q", tenant, repo, typ)
	}
	if key != "a/b.py::Cls.m" {
		t.Errorf("key = %q", key)
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("acme:r:file_index:x.py")
	b := PointID("acme:r:file_index:x.py")
	c := PointID("acme:r:file_index:y.py")

	if a != b {
		t.Errorf("same doc id produced different point ids: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different doc ids collided: %s", a)
	}
	if len(strings.Split(a, "-")) != 5 {
		t.Errorf("point id is not a UUID: %s", a)
	}
}

func TestCanonicalSymbolName(t *testing.T) {
	if got := CanonicalSymbolName("hello", "Greeter"); got != "Greeter.hello" {
		t.Errorf("method name = %q", got)
	}
	if got := CanonicalSymbolName("add", ""); got != "add" {
		t.Errorf("function name = %q", got)
	}
}

func TestAggregateHashOrderSensitive(t *testing.T) {
	ids := []string{"a", "b"}
	sums := []string{"s1", "s2"}

	h1 := AggregateHash(ids, sums)
	h2 := AggregateHash(ids, sums)
	if h1 != h2 {
		t.Errorf("hash not deterministic")
	}

	h3 := AggregateHash([]string{"b", "a"}, []string{"s2", "s1"})
	if h1 == h3 {
		t.Errorf("hash ignores child order")
	}

	h4 := AggregateHash(ids, []string{"s1", "changed"})
	if h1 == h4 {
		t.Errorf("hash ignores summary change")
	}
}

func TestParentType(t *testing.T) {
	tests := []struct {
		child  DocType
		parent DocType
	}{
		{DocTypeSymbolIndex, DocTypeFileIndex},
		{DocTypeFileIndex, DocTypeModuleSummary},
		{DocTypeModuleSummary, DocTypeRepoSummary},
		{DocTypeRepoSummary, ""},
	}
	for _, tt := range tests {
		if got := tt.child.ParentType(); got != tt.parent {
			t.Errorf("ParentType(%s) = %s, want %s", tt.child, got, tt.parent)
		}
	}
}
