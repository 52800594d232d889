package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// Record is one indexed chunk: its text, where it came from, and its embedding.
type Record struct {
	ID         string    // Deterministic UUID, see RecordID
	Source     string    // PDF file name the chunk was cut from
	ChunkIndex int       // Position within the source document (0, 1, 2...)
	Text       string    // Chunk text, returned verbatim as context
	Vector     []float32 // VectorDimension floats
}

// ScoredRecord is a Record returned by a similarity query.
type ScoredRecord struct {
	Record *Record
	Score  float64 // Cosine similarity, higher is closer
}

// VectorDimension is the embedding size of all-MiniLM-L6-v2.
const VectorDimension = 384

// Metadata keys stored alongside every vector.
const (
	FieldText           = "text"
	FieldSource         = "source"
	FieldChunkIndex     = "chunk_index"
	FieldEmbeddingModel = "embedding_model"
	FieldNamespace      = "namespace"
)

// recordNamespace seeds RecordID so ids are stable across runs and hosts.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/bull/pdf-assistant/records"))

// RecordID returns the id of chunk index of source. Re-indexing the same
// file overwrites its previous vectors instead of duplicating them.
func RecordID(source string, index int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}
