package ingest

import (
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

// IndexedChunk is the document shape stored in the keyword index.
type IndexedChunk struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// KeywordHit is a single keyword search result.
type KeywordHit struct {
	DocumentID string
	Filename   string
	ChunkIndex int
	Content    string
	Score      float64
}

// KeywordIndex maintains an in-memory bleve index over ingested chunks so
// searches can run in keyword mode next to the vector store.
type KeywordIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	meta  map[string]IndexedChunk
}

func NewKeywordIndex() (*KeywordIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &KeywordIndex{index: index, meta: make(map[string]IndexedChunk)}, nil
}

func (k *KeywordIndex) Add(id string, chunk IndexedChunk) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.meta[id] = chunk
	return k.index.Index(id, chunk)
}

// RemoveDocument drops every indexed chunk belonging to documentID.
func (k *KeywordIndex) RemoveDocument(documentID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for id, chunk := range k.meta {
		if chunk.DocumentID == documentID {
			_ = k.index.Delete(id)
			delete(k.meta, id)
		}
	}
}

func (k *KeywordIndex) Search(q string, limit int) ([]KeywordHit, error) {
	if limit <= 0 {
		limit = 5
	}
	query := bleve.NewQueryStringQuery(strings.TrimSpace(q))
	searchReq := bleve.NewSearchRequestOptions(query, limit, 0, false)
	k.mu.RLock()
	defer k.mu.RUnlock()
	res, err := k.index.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []KeywordHit
	for _, hit := range res.Hits {
		chunk, ok := k.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, KeywordHit{
			DocumentID: chunk.DocumentID,
			Filename:   chunk.Filename,
			ChunkIndex: chunk.ChunkIndex,
			Content:    chunk.Content,
			Score:      hit.Score,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
