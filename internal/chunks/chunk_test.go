package chunks

import (
	"regexp"
	"testing"
)

func TestDocIDDeterministic(t *testing.T) {
	a := DocID("https://example.com/doc.pdf")
	b := DocID("https://example.com/doc.pdf")
	if a != b {
		t.Fatalf("DocID not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("DocID length = %d, want 64 hex chars", len(a))
	}
	if c := DocID("https://example.com/other.pdf"); c == a {
		t.Fatal("distinct sources produced the same doc id")
	}
}

func TestChunkIDStable(t *testing.T) {
	docID := DocID("file:///tmp/report.md")

	uuidRe := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	first := ChunkID(docID, 0)
	if !uuidRe.MatchString(first) {
		t.Fatalf("ChunkID %q is not a canonical UUID", first)
	}
	if again := ChunkID(docID, 0); again != first {
		t.Fatalf("ChunkID not stable: %s vs %s", first, again)
	}
	if second := ChunkID(docID, 1); second == first {
		t.Fatal("adjacent indices produced the same chunk id")
	}
	if other := ChunkID(DocID("file:///tmp/other.md"), 0); other == first {
		t.Fatal("distinct documents produced the same chunk id")
	}
}

func TestChunkIDRange(t *testing.T) {
	docID := DocID("https://example.com")

	ids := ChunkIDRange(docID, 2, 4)
	if len(ids) != 3 {
		t.Fatalf("range length = %d, want 3", len(ids))
	}
	for i, id := range ids {
		if want := ChunkID(docID, 2+i); id != want {
			t.Errorf("ids[%d] = %s, want %s", i, id, want)
		}
	}

	if got := ChunkIDRange(docID, 5, 4); got != nil {
		t.Errorf("inverted range = %v, want nil", got)
	}
	if got := ChunkIDRange(docID, 3, 3); len(got) != 1 {
		t.Errorf("single-element range length = %d, want 1", len(got))
	}
}
