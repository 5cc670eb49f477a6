package services

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseTips_GroupsByCategoryInOrder(t *testing.T) {
	data := []byte(`
tips:
  - {id: a, category: Walking, title: A, body: a}
  - {id: b, category: digital, title: B, body: b}
  - {id: c, category: walking, title: C, body: c}
`)
	svc, err := ParseTips(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	categories := svc.Categories()
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
	if categories[0].Name != "walking" || len(categories[0].Tips) != 2 {
		t.Fatalf("unexpected first category: %+v", categories[0])
	}
	if categories[1].Name != "digital" {
		t.Fatalf("unexpected second category: %+v", categories[1])
	}
	if svc.Count() != 3 {
		t.Fatalf("expected 3 tips, got %d", svc.Count())
	}

	walking, err := svc.ByCategory("WALKING")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if walking.Tips[1].ID != "c" {
		t.Fatalf("expected tip c second, got %s", walking.Tips[1].ID)
	}

	if _, err := svc.ByCategory("parking"); !errors.Is(err, ErrTipCategoryNotFound) {
		t.Fatalf("expected ErrTipCategoryNotFound, got %v", err)
	}
}

func TestParseTips_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing id", "tips:\n  - {category: x, title: t, body: b}\n", "id is required"},
		{"missing body", "tips:\n  - {id: a, category: x, title: t}\n", "title and body"},
		{"missing category", "tips:\n  - {id: a, title: t, body: b}\n", "category is required"},
		{"duplicate id", "tips:\n  - {id: a, category: x, title: t, body: b}\n  - {id: a, category: y, title: t, body: b}\n", "duplicate id"},
		{"unknown field", "tips:\n  - {id: a, category: x, title: t, body: b, color: red}\n", "parsing tips"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTips([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseTips_Empty(t *testing.T) {
	svc, err := ParseTips(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.Categories()) != 0 {
		t.Fatalf("expected no categories")
	}
}

func TestLoadTipService_ShippedCatalogue(t *testing.T) {
	svc, err := LoadTipService(filepath.Join("..", "..", "content", "tips.yaml"))
	if err != nil {
		t.Fatalf("shipped tips must load: %v", err)
	}
	if svc.Count() == 0 {
		t.Fatal("expected tips")
	}
	if _, err := svc.ByCategory("emergency"); err != nil {
		t.Fatalf("expected emergency category: %v", err)
	}
}
