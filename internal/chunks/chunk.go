// Package chunks defines chunk identity, pricing, and text splitting for
// indexed documents. Chunk identifiers are deterministic so re-indexing the
// same source yields the same ids and previously purchased chunks stay owned.
package chunks

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// Chunk is one priced unit of retrievable content.
type Chunk struct {
	ID             string // stable UUID derived from (doc id, index)
	DocID          string // hex SHA-256 of the source URI
	Index          int    // zero-based position within the document
	Content        string
	Source         string // original source URI
	DocType        string // "pdf", "text", "markdown", "web"
	PriceBaseUnits uint64 // price in token base units (e.g. USDC micro-units)
}

// DocID derives the document identifier from its source URI.
func DocID(sourceURI string) string {
	sum := sha256.Sum256([]byte(sourceURI))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives the stable chunk identifier for a (doc id, index) pair.
// The first 16 bytes of SHA-1(docID ":" index) are rendered as a UUID.
func ChunkID(docID string, index int) string {
	sum := sha1.Sum([]byte(docID + ":" + strconv.Itoa(index)))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// FromBytes only fails on wrong slice length.
		panic(err)
	}
	return id.String()
}

// ChunkIDRange derives chunk ids for indices [start, end] inclusive.
func ChunkIDRange(docID string, start, end int) []string {
	if end < start {
		return nil
	}
	ids := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		ids = append(ids, ChunkID(docID, i))
	}
	return ids
}
