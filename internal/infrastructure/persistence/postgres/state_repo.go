package postgres

import (
	"context"
	"fmt"

	"github.com/class-bell/class-bell/internal/domain/snapshot"
)

// DefaultStateID is the row holding the document.
const DefaultStateID = "default"

// StateRepository keeps the whole state document in one jsonb row.
type StateRepository struct {
	db Querier
	id string
}

// NewStateRepository creates a repository. An empty id selects DefaultStateID.
func NewStateRepository(db Querier, id string) *StateRepository {
	if id == "" {
		id = DefaultStateID
	}
	return &StateRepository{db: db, id: id}
}

// Load reads the document, or returns an empty one when the row is missing.
func (r *StateRepository) Load(ctx context.Context) (snapshot.Document, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM bot_state WHERE id = $1`, r.id).Scan(&data)
	if IsNoRows(err) {
		return snapshot.Empty(), nil
	}
	if err != nil {
		return snapshot.Document{}, fmt.Errorf("load state: %w", err)
	}
	return snapshot.Unmarshal(data)
}

// Save upserts the document.
func (r *StateRepository) Save(ctx context.Context, doc snapshot.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO bot_state (id, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
	`, r.id, data)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

var _ snapshot.Store = (*StateRepository)(nil)
