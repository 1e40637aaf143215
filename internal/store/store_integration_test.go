package store_test

import (
	"context"
	"fmt"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/threadwise/agentd/internal/store"
)

// TestStoreRoundTrip exercises documents and chunk similarity search against
// a real pgvector-enabled Postgres.
func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("pgvector/pgvector:pg16"),
		tcPostgres.WithDatabase("agentd"),
		tcPostgres.WithUsername("agentd"),
		tcPostgres.WithPassword("agentd"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://agentd:agentd@%s:%s/agentd?sslmode=disable", host, port.Port())

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.DB.Close()

	setup := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE documents (
            id UUID PRIMARY KEY,
            filename TEXT NOT NULL,
            media_type TEXT NOT NULL DEFAULT '',
            source_url TEXT,
            chunk_count INT NOT NULL DEFAULT 0,
            text_length INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE document_chunks (
            id BIGSERIAL PRIMARY KEY,
            document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
            chunk_index INT NOT NULL,
            content TEXT NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}',
            embedding vector(3) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            UNIQUE (document_id, chunk_index)
        )`,
	}
	for _, stmt := range setup {
		if _, err := st.DB.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	docID := "3d2a8f1e-8a4d-4a7b-9c6c-2f1d4a5b6c7d"
	if err := st.CreateDocument(ctx, store.DocumentRecord{ID: docID, Filename: "a.txt", MediaType: "text/plain", TextLength: 20}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	records := []store.ChunkRecord{
		{Index: 0, Content: "north", Vector: []float32{1, 0, 0}, Metadata: map[string]interface{}{"fileName": "a.txt"}},
		{Index: 1, Content: "east", Vector: []float32{0, 1, 0}},
		{Index: 2, Content: "up", Vector: []float32{0, 0, 1}},
	}
	if err := st.InsertChunks(ctx, docID, records); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	results, err := st.SearchChunks(ctx, []float32{0.9, 0.1, 0}, 2, 0)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Content != "north" {
		t.Errorf("nearest = %q, want north", results[0].Content)
	}
	if results[0].Distance >= results[1].Distance {
		t.Errorf("distances not ascending: %v then %v", results[0].Distance, results[1].Distance)
	}

	docs, chunks, err := st.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if docs != 1 || chunks != 3 {
		t.Fatalf("docs=%d chunks=%d", docs, chunks)
	}

	ids, err := st.DeleteDocumentsByFilename(ctx, "a.txt")
	if err != nil {
		t.Fatalf("DeleteDocumentsByFilename: %v", err)
	}
	if len(ids) != 1 || ids[0] != docID {
		t.Fatalf("ids = %v", ids)
	}
	_, chunks, err = st.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if chunks != 0 {
		t.Fatalf("cascade left %d chunks", chunks)
	}
}
