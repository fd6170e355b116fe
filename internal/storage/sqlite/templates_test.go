package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestCreateTemplate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tpl, err := store.CreateTemplate(ctx, types.NewTemplate{
		Name:        "feature intake",
		Description: "standard blueprint",
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if !tpl.IsEnabled {
		t.Error("new templates should start enabled")
	}
	if tpl.IsProtected || tpl.IsBuiltIn {
		t.Errorf("flags = protected:%v builtin:%v, want both off", tpl.IsProtected, tpl.IsBuiltIn)
	}

	_, err = store.CreateTemplate(ctx, types.NewTemplate{Name: "feature intake"})
	wantCode(t, err, types.CodeConflict)
}

func TestUpdateTemplateProtected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tpl, err := store.CreateTemplate(ctx, types.NewTemplate{
		Name: "locked", IsProtected: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = store.UpdateTemplate(ctx, tpl.ID, map[string]interface{}{"name": "renamed"}, tpl.Version)
	wantCode(t, err, types.CodeValidation)
	if !strings.Contains(err.Error(), "protected") {
		t.Errorf("error = %v, want protected message", err)
	}

	err = store.DeleteTemplate(ctx, tpl.ID)
	wantCode(t, err, types.CodeValidation)

	// The enabled switch stays writable on protected templates.
	got, err := store.SetTemplateEnabled(ctx, tpl.ID, false, tpl.Version)
	if err != nil {
		t.Fatalf("SetTemplateEnabled: %v", err)
	}
	if got.IsEnabled {
		t.Error("template still enabled")
	}
}

func TestUpdateTemplate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tpl, err := store.CreateTemplate(ctx, types.NewTemplate{Name: "draft"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.UpdateTemplate(ctx, tpl.ID, map[string]interface{}{
		"name":        "release checklist",
		"description": "steps before shipping",
	}, tpl.Version)
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if got.Name != "release checklist" || got.Description != "steps before shipping" {
		t.Errorf("got %q / %q", got.Name, got.Description)
	}

	_, err = store.UpdateTemplate(ctx, tpl.ID, map[string]interface{}{"is_enabled": false}, got.Version)
	wantCode(t, err, types.CodeValidation)
}

func TestDeleteTemplateRemovesBlueprint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tpl, err := store.CreateTemplate(ctx, types.NewTemplate{Name: "scratch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sec := addSection(t, store, types.EntityTemplate, tpl.ID, "step one")

	if err := store.DeleteTemplate(ctx, tpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	_, err = store.GetSection(ctx, sec.ID)
	wantCode(t, err, types.CodeNotFound)
}

func TestApplyTemplate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)

	tpl, err := store.CreateTemplate(ctx, types.NewTemplate{Name: "intake"})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	addSection(t, store, types.EntityTemplate, tpl.ID, "context")
	addSection(t, store, types.EntityTemplate, tpl.ID, "acceptance")

	// The target already has one section; clones land after it.
	addSection(t, store, types.EntityFeature, f.ID, "existing")

	created, err := store.ApplyTemplate(ctx, tpl.ID, types.EntityFeature, f.ID)
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("cloned %d sections, want 2", len(created))
	}
	if created[0].Title != "context" || created[0].Ordinal != 1 {
		t.Errorf("first clone = %q @%d, want context @1", created[0].Title, created[0].Ordinal)
	}
	if created[1].Title != "acceptance" || created[1].Ordinal != 2 {
		t.Errorf("second clone = %q @%d, want acceptance @2", created[1].Title, created[1].Ordinal)
	}
	for _, sec := range created {
		if sec.EntityType != types.EntityFeature || sec.EntityID != f.ID {
			t.Errorf("clone owner = %s %s, want the feature", sec.EntityType, sec.EntityID)
		}
		if sec.Version != 1 {
			t.Errorf("clone version = %d, want fresh 1", sec.Version)
		}
	}

	// The blueprint itself is untouched.
	blueprint, err := store.ListSections(ctx, types.EntityTemplate, tpl.ID)
	if err != nil {
		t.Fatalf("list blueprint: %v", err)
	}
	if len(blueprint) != 2 {
		t.Errorf("blueprint has %d sections, want 2", len(blueprint))
	}
}

func TestApplyTemplateRefusals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	tpl, err := store.CreateTemplate(ctx, types.NewTemplate{Name: "off"})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	disabled, err := store.SetTemplateEnabled(ctx, tpl.ID, false, tpl.Version)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}

	other, err := store.CreateTemplate(ctx, types.NewTemplate{Name: "target"})
	if err != nil {
		t.Fatalf("create target template: %v", err)
	}

	tests := []struct {
		name       string
		templateID string
		entity     types.EntityType
		entityID   string
		code       types.ErrorCode
		contains   string
	}{
		{"disabled template", disabled.ID, types.EntityProject, p.ID, types.CodeValidation, "disabled"},
		{"missing template", "ghost", types.EntityProject, p.ID, types.CodeNotFound, ""},
		{"template target", other.ID, types.EntityTemplate, tpl.ID, types.CodeValidation, "templates apply to"},
		{"missing target", other.ID, types.EntityProject, "ghost", types.CodeNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ApplyTemplate(ctx, tt.templateID, tt.entity, tt.entityID)
			wantCode(t, err, tt.code)
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error = %v, want it to mention %q", err, tt.contains)
			}
		})
	}
}
