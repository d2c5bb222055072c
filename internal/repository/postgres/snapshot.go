package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dtroode/sharekeeper/internal/model"
)

var _ model.RegistryStore = (*SnapshotRepository)(nil)

// SnapshotRepository stores the registry in the users and shares tables and
// replaces both inside one transaction on every save.
type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{
		db: db,
	}
}

const (
	selectUsersQuery = `SELECT id, username, display_name, registered_at, last_active_at, verified, owned_shares, received_shares
			  FROM users`
	selectSharesQuery = `SELECT id, owner_id, file_path, file_category, file_name, created_at, expires_at, access_count, accessed_by
			  FROM shares`
	insertUserQuery = `INSERT INTO users (id, username, display_name, registered_at, last_active_at, verified, owned_shares, received_shares)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	insertShareQuery = `INSERT INTO shares (id, owner_id, file_path, file_category, file_name, created_at, expires_at, access_count, accessed_by)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

func (r *SnapshotRepository) Load(ctx context.Context) (model.Snapshot, error) {
	snapshot := model.NewSnapshot()

	if err := r.loadUsers(ctx, snapshot.Users); err != nil {
		return model.Snapshot{}, err
	}
	if err := r.loadShares(ctx, snapshot.Shares); err != nil {
		return model.Snapshot{}, err
	}

	return snapshot, nil
}

func (r *SnapshotRepository) loadUsers(ctx context.Context, dst map[model.UserID]*model.User) error {
	rows, err := r.db.QueryContext(ctx, selectUsersQuery)
	if err != nil {
		return fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u               model.User
			id              string
			owned, received []byte
		)
		err := rows.Scan(&id, &u.Username, &u.DisplayName, &u.RegisteredAt, &u.LastActiveAt, &u.Verified, &owned, &received)
		if err != nil {
			return fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID = model.UserID(id)
		if err := json.Unmarshal(owned, &u.OwnedShares); err != nil {
			return fmt.Errorf("failed to decode owned shares of %s: %w", id, err)
		}
		if err := json.Unmarshal(received, &u.ReceivedShares); err != nil {
			return fmt.Errorf("failed to decode received shares of %s: %w", id, err)
		}
		dst[u.ID] = &u
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate users: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) loadShares(ctx context.Context, dst map[model.ShareID]*model.Share) error {
	rows, err := r.db.QueryContext(ctx, selectSharesQuery)
	if err != nil {
		return fmt.Errorf("failed to query shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s              model.Share
			id, owner, cat string
			accessedBy     []byte
		)
		err := rows.Scan(&id, &owner, &s.FilePath, &cat, &s.FileName, &s.CreatedAt, &s.ExpiresAt, &s.AccessCount, &accessedBy)
		if err != nil {
			return fmt.Errorf("failed to scan share: %w", err)
		}
		s.ID = model.ShareID(id)
		s.OwnerID = model.UserID(owner)
		s.Category = model.Category(cat)
		if err := json.Unmarshal(accessedBy, &s.AccessedBy); err != nil {
			return fmt.Errorf("failed to decode accessed_by of %s: %w", id, err)
		}
		dst[s.ID] = &s
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate shares: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot model.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM shares`); err != nil {
		return fmt.Errorf("failed to clear shares: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}

	userIDs := make([]model.UserID, 0, len(snapshot.Users))
	for id := range snapshot.Users {
		userIDs = append(userIDs, id)
	}
	slices.Sort(userIDs)

	for _, id := range userIDs {
		u := snapshot.Users[id]
		owned, err := jsonList(u.OwnedShares)
		if err != nil {
			return err
		}
		received, err := jsonList(u.ReceivedShares)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insertUserQuery,
			string(id), u.Username, u.DisplayName, u.RegisteredAt, u.LastActiveAt, u.Verified, owned, received,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", id, err)
		}
	}

	shareIDs := make([]model.ShareID, 0, len(snapshot.Shares))
	for id := range snapshot.Shares {
		shareIDs = append(shareIDs, id)
	}
	slices.Sort(shareIDs)

	for _, id := range shareIDs {
		s := snapshot.Shares[id]
		accessedBy, err := jsonList(s.AccessedBy)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insertShareQuery,
			string(id), string(s.OwnerID), s.FilePath, string(s.Category), s.FileName,
			s.CreatedAt, s.ExpiresAt, s.AccessCount, accessedBy,
		)
		if err != nil {
			return fmt.Errorf("failed to insert share %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// jsonList encodes a list column; nil becomes an empty JSON array.
func jsonList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list column: %w", err)
	}
	return string(data), nil
}
