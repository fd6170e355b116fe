package types

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    NewTask
		wantErr string
	}{
		{"valid", NewTask{Title: "T", Summary: "S", Priority: PriorityHigh, Complexity: 3}, ""},
		{"defaults priority", NewTask{Title: "T", Summary: "S", Complexity: 1}, ""},
		{"missing title", NewTask{Summary: "S", Complexity: 1}, "title is required"},
		{"blank title", NewTask{Title: "   ", Summary: "S", Complexity: 1}, "title is required"},
		{"missing summary", NewTask{Title: "T", Complexity: 1}, "summary is required"},
		{"complexity low", NewTask{Title: "T", Summary: "S", Complexity: 0}, "between 1 and 10"},
		{"complexity high", NewTask{Title: "T", Summary: "S", Complexity: 11}, "between 1 and 10"},
		{"bad priority", NewTask{Title: "T", Summary: "S", Priority: "URGENT", Complexity: 5}, "invalid priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				if tt.task.Priority == "" {
					t.Error("priority should be defaulted")
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !IsValidation(err) {
				t.Errorf("code = %q, want VALIDATION_ERROR", CodeOf(err))
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateAtomPaths(t *testing.T) {
	long := strings.Repeat("a", MaxPathLength+1)
	many := make([]string, MaxAtomPaths+1)
	for i := range many {
		many[i] = "src/a.ts"
	}

	tests := []struct {
		name    string
		paths   []string
		wantErr string
	}{
		{"single glob", []string{"src/**/*.ts"}, ""},
		{"twenty allowed", make([]string, 0), "at least one"},
		{"too many", many, "at most 20"},
		{"too long", []string{long}, "exceeds 512"},
		{"absolute", []string{"/etc/passwd"}, "must be relative"},
		{"traversal", []string{"src/../secret"}, "must not contain"},
		{"empty token", []string{"  "}, "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAtomPaths(tt.paths)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateAtomPaths() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ValidateAtomPaths() = %v, want message containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRelatedRefs(t *testing.T) {
	if err := ValidateRelatedRefs([]string{"a", "b"}, "c"); err != nil {
		t.Fatalf("valid refs rejected: %v", err)
	}
	if err := ValidateRelatedRefs([]string{"a", "a"}, ""); CodeOf(err) != CodeDuplicateDependency {
		t.Errorf("duplicate ref code = %q, want DUPLICATE_DEPENDENCY", CodeOf(err))
	}
	if err := ValidateRelatedRefs([]string{"self"}, "self"); CodeOf(err) != CodeSelfDependency {
		t.Errorf("self ref code = %q, want SELF_DEPENDENCY", CodeOf(err))
	}
	over := make([]string, MaxRelatedRefs+1)
	for i := range over {
		over[i] = "ref"
	}
	if err := ValidateRelatedRefs(over, ""); err == nil || !strings.Contains(err.Error(), "at most 50") {
		t.Errorf("cap violation = %v, want 'at most 50'", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"lower and trim", []string{" Backend ", "API"}, []string{"backend", "api"}},
		{"dedupe keeps first", []string{"db", "DB", " db "}, []string{"db"}},
		{"drops empties", []string{"", "  ", "x"}, []string{"x"}},
		{"nil in nil out", nil, nil},
		{"all empty", []string{"", " "}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTags(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRemoveStrings(t *testing.T) {
	got, changed := RemoveStrings([]string{"a", "b", "c"}, []string{"b"})
	if !changed || !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("RemoveStrings = %v (changed=%v)", got, changed)
	}
	got, changed = RemoveStrings([]string{"a"}, []string{"zz"})
	if changed || !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("absent removal should be a no-op, got %v (changed=%v)", got, changed)
	}
}

func TestTaskBlockers(t *testing.T) {
	task := Task{Dependencies: []string{"legacy"}}
	if got := task.Blockers(); !reflect.DeepEqual(got, []string{"legacy"}) {
		t.Errorf("legacy fallback = %v", got)
	}
	task.BlockedBy = []string{"v3"}
	if got := task.Blockers(); !reflect.DeepEqual(got, []string{"v3"}) {
		t.Errorf("blocked_by should win when both are populated, got %v", got)
	}
}

func TestEnumValidity(t *testing.T) {
	if !PriorityHigh.IsValid() || Priority("URGENT").IsValid() {
		t.Error("priority validity broken")
	}
	if !FormatCode.IsValid() || ContentFormat("HTML").IsValid() {
		t.Error("content format validity broken")
	}
	if !EntityTemplate.IsValid() || EntityType("EPIC").IsValid() {
		t.Error("entity type validity broken")
	}
	if !EntityFeature.HasStatus() || EntityProject.HasStatus() {
		t.Error("status-bearing check broken")
	}
	if !ChangelogParentAtom.IsValid() || ChangelogParent("task").IsValid() {
		t.Error("changelog parent validity broken")
	}
}
