package schema

import (
	"reflect"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("empty schema rejected", func(t *testing.T) {
		if _, err := New(nil); err == nil {
			t.Error("expected error for empty key set")
		}
	})

	t.Run("valid schema compiles", func(t *testing.T) {
		if _, err := New([]string{"Glossary", "Hint"}); err != nil {
			t.Errorf("New failed: %v", err)
		}
	})
}

func TestValidator_Check(t *testing.T) {
	v, err := New([]string{"Glossary", "Hint"})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("complete result is usable", func(t *testing.T) {
		checked := v.Check(map[string]any{
			"Glossary": "dog",
			"Hint":     "used as a noun",
			"Extra":    []any{"dropped"},
		})
		if !checked.Usable() {
			t.Fatalf("expected usable, missing=%v", checked.Missing)
		}
		want := map[string]string{"Glossary": "dog", "Hint": "used as a noun"}
		if !reflect.DeepEqual(checked.Fields, want) {
			t.Errorf("Fields = %v, want %v", checked.Fields, want)
		}
	})

	t.Run("missing key is reported", func(t *testing.T) {
		checked := v.Check(map[string]any{"Glossary": "dog"})
		if checked.Usable() {
			t.Error("expected not usable")
		}
		if !reflect.DeepEqual(checked.Missing, []string{"Hint"}) {
			t.Errorf("Missing = %v, want [Hint]", checked.Missing)
		}
	})

	t.Run("non-scalar value counts as missing", func(t *testing.T) {
		checked := v.Check(map[string]any{
			"Glossary": map[string]any{"nested": true},
			"Hint":     "ok",
		})
		if checked.Usable() {
			t.Error("expected not usable for non-scalar value")
		}
		if !reflect.DeepEqual(checked.Missing, []string{"Glossary"}) {
			t.Errorf("Missing = %v, want [Glossary]", checked.Missing)
		}
	})

	t.Run("scalar coercion", func(t *testing.T) {
		checked := v.Check(map[string]any{
			"Glossary": float64(5),
			"Hint":     true,
		})
		if !checked.Usable() {
			t.Fatalf("expected usable, missing=%v", checked.Missing)
		}
		if checked.Fields["Glossary"] != "5" {
			t.Errorf("integral float coerced to %q, want 5", checked.Fields["Glossary"])
		}
		if checked.Fields["Hint"] != "true" {
			t.Errorf("bool coerced to %q, want true", checked.Fields["Hint"])
		}
	})

	t.Run("fractional number keeps decimals", func(t *testing.T) {
		checked := v.Check(map[string]any{
			"Glossary": 2.5,
			"Hint":     "ok",
		})
		if checked.Fields["Glossary"] != "2.5" {
			t.Errorf("coerced to %q, want 2.5", checked.Fields["Glossary"])
		}
	})

	t.Run("null value counts as missing", func(t *testing.T) {
		checked := v.Check(map[string]any{
			"Glossary": nil,
			"Hint":     "ok",
		})
		if checked.Usable() {
			t.Error("expected not usable for null value")
		}
		if !reflect.DeepEqual(checked.Missing, []string{"Glossary"}) {
			t.Errorf("Missing = %v, want [Glossary]", checked.Missing)
		}
	})

	t.Run("absent and invalid keys reported together", func(t *testing.T) {
		checked := v.Check(map[string]any{
			"Glossary": []any{"dog"},
		})
		if checked.Usable() {
			t.Error("expected not usable")
		}
		if !reflect.DeepEqual(checked.Missing, []string{"Glossary", "Hint"}) {
			t.Errorf("Missing = %v, want [Glossary Hint]", checked.Missing)
		}
		if len(checked.Fields) != 0 {
			t.Errorf("Fields = %v, want empty", checked.Fields)
		}
	})

	t.Run("empty result is not usable", func(t *testing.T) {
		checked := v.Check(map[string]any{})
		if checked.Usable() {
			t.Error("expected empty result to be unusable")
		}
		if len(checked.Missing) != 2 {
			t.Errorf("Missing = %v, want both keys", checked.Missing)
		}
	})
}
