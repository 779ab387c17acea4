package snapshot

import (
	"context"
	"reflect"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	doc := testDoc()
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(doc, reloaded) {
		t.Fatalf("round trip changed the document")
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	doc := testDoc()
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Mutating the saved document must not reach the store.
	doc["m1"].Name = "changed"
	reloaded, _ := store.Load(ctx)
	if reloaded["m1"].Name != "m1" {
		t.Fatal("store shares node pointers with the caller")
	}
	// Mutating a loaded document must not reach later loads.
	reloaded["m1"].Attributes["genotype"] = "ko"
	again, _ := store.Load(ctx)
	if again["m1"].Attributes["genotype"] != "wt" {
		t.Fatal("loads share node pointers")
	}
}
