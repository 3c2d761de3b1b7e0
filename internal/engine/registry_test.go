package engine

import "testing"

func TestRegistryLookupNormalizesExtension(t *testing.T) {
	r := NewRegistry(DefaultFormats())
	for _, ext := range []string{"pdf", "PDF", ".pdf", " pdf "} {
		f, ok := r.Lookup(ext)
		if !ok || f.MediaType != "application/pdf" {
			t.Fatalf("Lookup(%q) = %+v, %v", ext, f, ok)
		}
	}
	if _, ok := r.Lookup("xyz"); ok {
		t.Fatal("xyz should not be registered")
	}
}

func TestRegistryLaterEntryWins(t *testing.T) {
	r := NewRegistry([]Format{
		{Extension: "txt", MediaType: "text/plain"},
		{Extension: ".TXT", MediaType: "text/plain; charset=utf-8"},
		{Extension: "", MediaType: "ignored"},
	})
	if r.Len() != 1 {
		t.Fatalf("expected one entry, got %d", r.Len())
	}
	f, _ := r.Lookup("txt")
	if f.MediaType != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected media type %q", f.MediaType)
	}
}

func TestRegistryFormatsOrderedAndCopied(t *testing.T) {
	r := NewRegistry(DefaultFormats())
	formats := r.Formats()
	for i := 1; i < len(formats); i++ {
		prev, cur := formats[i-1], formats[i]
		if prev.Family > cur.Family || (prev.Family == cur.Family && prev.Extension > cur.Extension) {
			t.Fatalf("formats not ordered at %d: %v then %v", i, prev, cur)
		}
	}
	formats[0].MediaType = "mutated"
	if again := r.Formats(); again[0].MediaType == "mutated" {
		t.Fatal("Formats must return a copy")
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	if _, ok := r.Lookup("pdf"); ok {
		t.Fatal("nil registry should not resolve")
	}
	if r.Len() != 0 || r.Formats() != nil {
		t.Fatal("nil registry should be empty")
	}
}
