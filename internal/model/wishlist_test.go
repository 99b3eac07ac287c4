package model

import (
	"errors"
	"testing"

	"github.com/sakif/wishlist/internal/apperror"
)

func strPtr(s string) *string { return &s }

func TestRemoveItem_PreservesOrder(t *testing.T) {
	w := &Wishlist{Items: []Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}}

	if !w.RemoveItem("b") {
		t.Fatal("RemoveItem(b) = false, want true")
	}

	want := []string{"a", "c", "d"}
	if len(w.Items) != len(want) {
		t.Fatalf("len(Items) = %d, want %d", len(w.Items), len(want))
	}
	for i, id := range want {
		if w.Items[i].ID != id {
			t.Errorf("Items[%d].ID = %q, want %q", i, w.Items[i].ID, id)
		}
	}
}

func TestRemoveItem_Absent(t *testing.T) {
	w := &Wishlist{Items: []Item{{ID: "a"}}}

	if w.RemoveItem("zzz") {
		t.Error("RemoveItem(absent) = true, want false")
	}
	if len(w.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(w.Items))
	}
}

func TestItemPatch_Apply(t *testing.T) {
	it := Item{ID: "i1", Name: "Headphones", Price: "$99", Image: strPtr("http://img/old.png")}

	ItemPatch{Price: strPtr("$79"), Image: strPtr("")}.Apply(&it)

	if it.Price != "$79" {
		t.Errorf("Price = %q, want %q", it.Price, "$79")
	}
	if it.Name != "Headphones" {
		t.Errorf("Name = %q, want unchanged %q", it.Name, "Headphones")
	}
	if it.Image != nil {
		t.Errorf("Image = %v, want nil after clearing", *it.Image)
	}
}

func TestWishlistPatch_ApplyOnlyTouchesSetFields(t *testing.T) {
	w := &Wishlist{Title: "Birthday", Description: "turning 30"}

	WishlistPatch{Title: strPtr("Birthday 2024")}.Apply(w)

	if w.Title != "Birthday 2024" {
		t.Errorf("Title = %q, want %q", w.Title, "Birthday 2024")
	}
	if w.Description != "turning 30" {
		t.Errorf("Description = %q, want unchanged", w.Description)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"item with name", ItemFields{Name: "Book"}.Validate(), false},
		{"item with blank name", ItemFields{Name: "   "}.Validate(), true},
		{"patch clearing title", WishlistPatch{Title: strPtr("")}.Validate(), true},
		{"patch without title", WishlistPatch{Description: strPtr("x")}.Validate(), false},
		{"item patch blank name", ItemPatch{Name: strPtr(" ")}.Validate(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", tt.err, tt.wantErr)
			}
			if tt.err != nil && !errors.Is(tt.err, apperror.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", tt.err)
			}
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := &Wishlist{ID: "w1", Items: []Item{{ID: "i1", Name: "Lamp", Image: strPtr("http://img/1.png")}}}

	c := orig.Clone()
	c.Items[0].Name = "Changed"
	*c.Items[0].Image = "http://img/2.png"

	if orig.Items[0].Name != "Lamp" {
		t.Errorf("original item name changed to %q", orig.Items[0].Name)
	}
	if *orig.Items[0].Image != "http://img/1.png" {
		t.Errorf("original image changed to %q", *orig.Items[0].Image)
	}
}
