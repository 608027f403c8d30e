package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// DocumentRepositoryPG implements domain.DocumentRepository.
type DocumentRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepositoryPG {
	return &DocumentRepositoryPG{pool: pool}
}

// Create inserts an uploaded-document metadata row.
func (r *DocumentRepositoryPG) Create(ctx context.Context, doc *domain.Document) error {
	query := `
INSERT INTO documents (id, user_id, filename, kind, size_bytes, storage_key)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query, doc.ID, doc.UserID, doc.Filename, doc.Kind, doc.SizeBytes, doc.StorageKey)
	return err
}

// GetByID fetches document metadata by identifier.
func (r *DocumentRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, filename, kind, size_bytes, storage_key, created_at
FROM documents
WHERE id = $1;
`, id)
	var d domain.Document
	if err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.Kind, &d.SizeBytes, &d.StorageKey, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
