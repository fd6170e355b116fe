package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func addSection(t *testing.T, store *Store, entity types.EntityType, entityID, title string) *types.Section {
	t.Helper()
	sec, err := store.AddSection(context.Background(), types.NewSection{
		EntityType: entity,
		EntityID:   entityID,
		Title:      title,
		Content:    "body of " + title,
	})
	if err != nil {
		t.Fatalf("add section %s: %v", title, err)
	}
	return sec
}

func TestAddSectionAppends(t *testing.T) {
	store := newTestStore(t)
	p := seedProject(t, store)

	first := addSection(t, store, types.EntityProject, p.ID, "overview")
	second := addSection(t, store, types.EntityProject, p.ID, "notes")

	if first.Ordinal != 0 {
		t.Errorf("first ordinal = %d, want 0", first.Ordinal)
	}
	if second.Ordinal != 1 {
		t.Errorf("second ordinal = %d, want 1", second.Ordinal)
	}
	if first.Format != types.FormatMarkdown {
		t.Errorf("format = %q, want default MARKDOWN", first.Format)
	}
}

func TestAddSectionExplicitOrdinal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	five := 5
	sec, err := store.AddSection(ctx, types.NewSection{
		EntityType: types.EntityProject,
		EntityID:   p.ID,
		Title:      "appendix",
		Ordinal:    &five,
	})
	if err != nil {
		t.Fatalf("AddSection: %v", err)
	}
	if sec.Ordinal != 5 {
		t.Errorf("ordinal = %d, want 5", sec.Ordinal)
	}

	// The taken slot is refused, not shifted.
	dup := 5
	_, err = store.AddSection(ctx, types.NewSection{
		EntityType: types.EntityProject,
		EntityID:   p.ID,
		Title:      "clash",
		Ordinal:    &dup,
	})
	wantCode(t, err, types.CodeConflict)
	if !strings.Contains(err.Error(), "ordinal 5 is already taken") {
		t.Errorf("error = %v, want taken-ordinal message", err)
	}

	// The append path continues after the gap.
	next := addSection(t, store, types.EntityProject, p.ID, "after gap")
	if next.Ordinal != 6 {
		t.Errorf("append after gap ordinal = %d, want 6", next.Ordinal)
	}
}

func TestAddSectionOwnerChecks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		entity types.EntityType
		id     string
		code   types.ErrorCode
	}{
		{"missing owner", types.EntityProject, "ghost", types.CodeNotFound},
		{"invalid owner type", types.EntityType("BOARD"), "x", types.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AddSection(ctx, types.NewSection{
				EntityType: tt.entity, EntityID: tt.id, Title: "t",
			})
			wantCode(t, err, tt.code)
		})
	}
}

func TestUpdateSection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	sec := addSection(t, store, types.EntityProject, p.ID, "draft")

	got, err := store.UpdateSection(ctx, sec.ID, map[string]interface{}{
		"title":          "final",
		"content_format": "plain_text",
		"tag":            " Docs ",
	}, sec.Version)
	if err != nil {
		t.Fatalf("UpdateSection: %v", err)
	}
	if got.Title != "final" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Format != types.FormatPlainText {
		t.Errorf("format = %q, want PLAIN_TEXT", got.Format)
	}
	if got.Tag != "docs" {
		t.Errorf("tag = %q, want normalized docs", got.Tag)
	}

	_, err = store.UpdateSection(ctx, sec.ID, map[string]interface{}{"ordinal": 3}, got.Version)
	wantCode(t, err, types.CodeValidation)
}

func TestUpdateSectionText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	sec := addSection(t, store, types.EntityProject, p.ID, "notes")

	got, err := store.UpdateSectionText(ctx, sec.ID, "rewritten body", sec.Version)
	if err != nil {
		t.Fatalf("UpdateSectionText: %v", err)
	}
	if got.Content != "rewritten body" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Version != sec.Version+1 {
		t.Errorf("version = %d, want bump", got.Version)
	}
	if got.Title != sec.Title {
		t.Errorf("title changed: %q -> %q", sec.Title, got.Title)
	}

	_, err = store.UpdateSectionText(ctx, sec.ID, "again", sec.Version)
	wantCode(t, err, types.CodeConflict)
}

func TestReorderSections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	a := addSection(t, store, types.EntityProject, p.ID, "a")
	b := addSection(t, store, types.EntityProject, p.ID, "b")
	c := addSection(t, store, types.EntityProject, p.ID, "c")

	got, err := store.ReorderSections(ctx, types.EntityProject, p.ID, []string{c.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("ReorderSections: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d sections, want 3", len(got))
	}
	wantOrder := []string{"c", "a", "b"}
	for i, sec := range got {
		if sec.Title != wantOrder[i] {
			t.Errorf("position %d = %q, want %q", i, sec.Title, wantOrder[i])
		}
		if sec.Ordinal != i {
			t.Errorf("section %q ordinal = %d, want dense %d", sec.Title, sec.Ordinal, i)
		}
	}
	if got[0].Version != c.Version+1 {
		t.Errorf("version = %d, want one bump per reorder", got[0].Version)
	}
}

func TestReorderSectionsValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	other := seedFeature(t, store, p.ID)

	a := addSection(t, store, types.EntityProject, p.ID, "a")
	addSection(t, store, types.EntityProject, p.ID, "b")
	foreign := addSection(t, store, types.EntityFeature, other.ID, "elsewhere")

	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"missing section", []string{a.ID}, "must list all 2 section(s)"},
		{"foreign section", []string{a.ID, foreign.ID}, "does not belong to"},
		{"duplicate entry", []string{a.ID, a.ID}, "listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ReorderSections(ctx, types.EntityProject, p.ID, tt.ids)
			wantCode(t, err, types.CodeValidation)
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestBulkDeleteSections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	a := addSection(t, store, types.EntityProject, p.ID, "a")
	b := addSection(t, store, types.EntityProject, p.ID, "b")

	n, err := store.BulkDeleteSections(ctx, []string{a.ID, b.ID, a.ID, "ghost"})
	if err != nil {
		t.Fatalf("BulkDeleteSections: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2 (dupes and unknowns don't count)", n)
	}

	n, err = store.BulkDeleteSections(ctx, nil)
	if err != nil {
		t.Fatalf("empty bulk delete: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted %d on empty input, want 0", n)
	}
}

func TestSectionsDeletedWithOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	sec := addSection(t, store, types.EntityProject, p.ID, "doomed")

	if err := store.DeleteProject(ctx, p.ID, false); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	_, err := store.GetSection(ctx, sec.ID)
	wantCode(t, err, types.CodeNotFound)
}
