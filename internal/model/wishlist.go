package model

import (
	"strings"
	"time"

	"github.com/sakif/wishlist/internal/apperror"
)

// Wishlist is a named, owned collection of gift items.
//
// The whole record, items included, is read and written as one unit. Items
// are embedded rather than normalised into their own table/collection, so
// "the wishlist" is always the granularity of a write.
//
// Revision is the optimistic-concurrency counter. Repositories refuse a save
// whose Revision does not match what is stored, and bump it on success.
//
// The ID is not stored inside the hosted document (firestore:"-") because the
// document ID already is the wishlist ID.
type Wishlist struct {
	ID          string    `json:"id"          firestore:"-"`
	UserID      string    `json:"userId"      firestore:"userId"`
	Title       string    `json:"title"       firestore:"title"`
	Description string    `json:"description" firestore:"description"`
	Items       []Item    `json:"items"       firestore:"items"`
	CreatedAt   time.Time `json:"createdAt"   firestore:"createdAt"`
	IsPublic    bool      `json:"isPublic"    firestore:"isPublic"`
	Revision    int64     `json:"revision"    firestore:"revision"`
}

// Item is a single gift entry. Its ID is only unique among its siblings.
//
// Price is free-form display text ("$99", "around 40€"), never a number.
// Image is a preview URL; nil means "no preview", which is what the JSON
// null in the public view represents.
type Item struct {
	ID      string    `json:"id"      firestore:"id"`
	Name    string    `json:"name"    firestore:"name"`
	URL     string    `json:"url"     firestore:"url"`
	Price   string    `json:"price"   firestore:"price"`
	Notes   string    `json:"notes"   firestore:"notes"`
	Image   *string   `json:"image"   firestore:"image"`
	AddedAt time.Time `json:"addedAt" firestore:"addedAt"`
}

// ItemFields are the caller-supplied fields of a new item. The store adds
// the ID and AddedAt.
type ItemFields struct {
	Name  string  `json:"name"`
	URL   string  `json:"url"`
	Price string  `json:"price"`
	Notes string  `json:"notes"`
	Image *string `json:"image"`
}

// Validate enforces the one required field. Callers run this before handing
// the fields to the store.
func (f ItemFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return apperror.ValidationFailed("name", "item name is required")
	}
	return nil
}

// WishlistPatch lists exactly the wishlist fields that may change after
// creation. A nil pointer means "leave as is".
type WishlistPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate rejects a patch that would blank the title.
func (p WishlistPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperror.ValidationFailed("title", "title must not be empty")
	}
	return nil
}

// Apply merges the patch into w.
func (p WishlistPatch) Apply(w *Wishlist) {
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
}

// ItemPatch lists the mutable item fields. Image pointing at "" clears the
// preview.
type ItemPatch struct {
	Name  *string `json:"name,omitempty"`
	URL   *string `json:"url,omitempty"`
	Price *string `json:"price,omitempty"`
	Notes *string `json:"notes,omitempty"`
	Image *string `json:"image,omitempty"`
}

// Validate rejects a patch that would blank the item name.
func (p ItemPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return apperror.ValidationFailed("name", "item name must not be empty")
	}
	return nil
}

// Apply merges the patch into it.
func (p ItemPatch) Apply(it *Item) {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.URL != nil {
		it.URL = *p.URL
	}
	if p.Price != nil {
		it.Price = *p.Price
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	if p.Image != nil {
		if *p.Image == "" {
			it.Image = nil
		} else {
			img := *p.Image
			it.Image = &img
		}
	}
}

// ItemIndex returns the position of the item with the given ID, or -1.
// A linear scan: wishlists are small and never indexed.
func (w *Wishlist) ItemIndex(itemID string) int {
	for i := range w.Items {
		if w.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// RemoveItem drops the item with the given ID, keeping the survivors in
// their original order. It reports whether anything was removed.
func (w *Wishlist) RemoveItem(itemID string) bool {
	i := w.ItemIndex(itemID)
	if i < 0 {
		return false
	}
	w.Items = append(w.Items[:i], w.Items[i+1:]...)
	return true
}

// Clone deep-copies the wishlist so in-memory mutation never leaks into a
// caller's copy (or a repository's cached copy).
func (w *Wishlist) Clone() *Wishlist {
	if w == nil {
		return nil
	}
	c := *w
	c.Items = make([]Item, len(w.Items))
	for i, it := range w.Items {
		if it.Image != nil {
			img := *it.Image
			it.Image = &img
		}
		c.Items[i] = it
	}
	return &c
}
