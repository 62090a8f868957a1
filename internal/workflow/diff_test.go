package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func compareHandler(t *testing.T, diffs []map[string]interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != projectPrefix+"/repository/compare" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("from") != "main" || q.Get("to") != "cms/posts/hello-world" {
			t.Errorf("compare %q...%q, want main...cms/posts/hello-world", q.Get("from"), q.Get("to"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"diffs": diffs})
	})
}

func TestDiff(t *testing.T) {
	engine := newTestEngine(t, compareHandler(t, []map[string]interface{}{
		{"old_path": "content/posts/hello-world/index.md", "new_path": "content/posts/hello-world/index.md", "new_file": true, "diff": "@@ -0,0 +1 @@"},
		{"old_path": "content/pages/about.md", "new_path": "content/pages/about.md", "diff": "@@ -1 +1 @@"},
		{"old_path": "content/pages/old.md", "new_path": "content/pages/old.md", "deleted_file": true, "diff": "@@ -1 +0,0 @@"},
		{"old_path": "content/posts/draft.md", "new_path": "content/posts/final.md", "renamed_file": true, "diff": ""},
		{"old_path": "content/images/photo.jpg", "new_path": "content/images/photo.jpg", "new_file": true, "diff": "Binary files /dev/null and b/content/images/photo.jpg differ"},
		{"old_path": "content/images/logo.svg", "new_path": "content/images/logo.svg", "new_file": true, "diff": "@@ -0,0 +1 @@\n+<svg/>"},
	}))

	entries, err := engine.Diff(context.Background(), ContentKey{Collection: "posts", Slug: "hello-world"})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("got %d entries, want 6", len(entries))
	}

	wantKinds := []ChangeKind{ChangeAdded, ChangeModified, ChangeDeleted, ChangeRenamed, ChangeAdded, ChangeAdded}
	wantBinary := []bool{false, false, false, false, true, true}
	for i, entry := range entries {
		if entry.Kind != wantKinds[i] {
			t.Errorf("entries[%d].Kind = %q, want %q", i, entry.Kind, wantKinds[i])
		}
		if entry.Binary != wantBinary[i] {
			t.Errorf("entries[%d] (%s) Binary = %v, want %v", i, entry.NewPath, entry.Binary, wantBinary[i])
		}
	}

	if entries[3].OldPath != "content/posts/draft.md" || entries[3].NewPath != "content/posts/final.md" {
		t.Errorf("rename entry = %+v", entries[3])
	}
}

func generatedDiffs(n int) []map[string]interface{} {
	diffs := make([]map[string]interface{}, n)
	for i := range diffs {
		path := fmt.Sprintf("content/posts/p%04d.md", i)
		diffs[i] = map[string]interface{}{"old_path": path, "new_path": path, "new_file": true, "diff": "@@ -0,0 +1 @@"}
	}
	return diffs
}

func TestDiffLimit(t *testing.T) {
	engine := newTestEngine(t, compareHandler(t, generatedDiffs(1000)))
	_, err := engine.Diff(context.Background(), ContentKey{Collection: "posts", Slug: "hello-world"})
	if !errors.Is(err, ErrDiffTooLarge) {
		t.Fatalf("Diff() error = %v, want ErrDiffTooLarge for 1000 changed paths", err)
	}

	engine = newTestEngine(t, compareHandler(t, generatedDiffs(999)))
	entries, err := engine.Diff(context.Background(), ContentKey{Collection: "posts", Slug: "hello-world"})
	if err != nil {
		t.Fatalf("Diff() error = %v for 999 changed paths", err)
	}
	if len(entries) != 999 {
		t.Errorf("got %d entries, want 999", len(entries))
	}
}
