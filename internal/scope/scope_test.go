package scope

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive/drivetest"
)

func newTree() *drivetest.Tree {
	return drivetest.New("d1").
		AddFolder(drive.RootID, "F1", "기획").
		AddFolder(drive.RootID, "F2", "개발").
		AddFolder(drive.RootID, "F3", "회계")
}

func TestOfSortsAndDedupes(t *testing.T) {
	v := Of("b", "a", "b")
	ids := v.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("unexpected ids: %v", ids)
	}
	if !v.Equal(Of("a", "b")) {
		t.Error("expected equal canonical values")
	}
	if v.IsUnrestricted() {
		t.Error("restricted scope reported unrestricted")
	}
}

func TestContains(t *testing.T) {
	if !Unrestricted().Contains("anything") {
		t.Error("unrestricted must contain every root")
	}
	v := Of("F1")
	if !v.Contains("F1") || v.Contains("F2") {
		t.Errorf("unexpected containment for %v", v)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{"drive-123", "root-123", "root", "F1", " ", "F2"})
	if len(got) != 2 || got[0] != "F1" || got[1] != "F2" {
		t.Errorf("unexpected normalized ids: %v", got)
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(newTree(), 50)
	ctx := context.Background()

	tests := []struct {
		name         string
		ids          []string
		unrestricted bool
		want         []string
	}{
		{"empty list", nil, true, nil},
		{"all sentinel", []string{"ALL"}, true, nil},
		{"star and root", []string{"*", "root"}, true, nil},
		{"sentinel mixed with folder", []string{"root", "F2"}, false, []string{"F2"}},
		{"single folder", []string{"F1"}, false, []string{"F1"}},
		{"drive id dropped", []string{"drive-d1", "F3", "F1"}, false, []string{"F1", "F3"}},
		{"every top folder collapses", []string{"F3", "F2", "F1"}, true, nil},
		{"root expansion", []string{"root-d1"}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := r.Resolve(ctx, "d1", tt.ids)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.IsUnrestricted() != tt.unrestricted {
				t.Fatalf("unrestricted = %v, want %v", v.IsUnrestricted(), tt.unrestricted)
			}
			if !tt.unrestricted && !v.Equal(Of(tt.want...)) {
				t.Errorf("got %v, want %v", v.IDs(), tt.want)
			}
		})
	}
}

func TestResolveEmptySelection(t *testing.T) {
	r := NewResolver(newTree(), 50)
	_, err := r.Resolve(context.Background(), "d1", []string{"drive-d1"})
	if !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
}

func TestResolveRootWithoutDrive(t *testing.T) {
	r := NewResolver(newTree(), 50)
	_, err := r.Resolve(context.Background(), "", []string{"root-x"})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestExpandRootsDedupesInOrder(t *testing.T) {
	tree := drivetest.New("d1").
		AddFolder(drive.RootID, "B", "b").
		AddFolder(drive.RootID, "A", "a")
	r := NewResolver(tree, 1)
	got, err := r.expandRoots(context.Background(), "d1", []string{"root-1", "root-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("expected first-seen order [B A], got %v", got)
	}
}

func TestValueJSON(t *testing.T) {
	b, _ := json.Marshal(Unrestricted())
	if string(b) != "null" {
		t.Errorf("unrestricted should marshal to null, got %s", b)
	}
	b, _ = json.Marshal(Of("F2", "F1"))
	if string(b) != `["F1","F2"]` {
		t.Errorf("unexpected json %s", b)
	}
}
