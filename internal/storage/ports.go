package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/woozymasta/gameroom/internal/models"
)

// GetPortPool reads the pool row of ip. It returns ErrNotFound if the IP has no row.
func (r *Repository) GetPortPool(ctx context.Context, ip string) (*models.PortPool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT public_ip, used, available, version FROM ports WHERE public_ip = ?`, ip)

	pool, err := scanPortPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return pool, err
}

// UpdatePortPool writes both sets of the pool if its stored version still equals pool.Version,
// bumping the version. It returns ErrVersionConflict when no row matched.
func (r *Repository) UpdatePortPool(ctx context.Context, pool models.PortPool) error {
	used, available, err := encodeSets(pool)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE ports
		SET used = ?, available = ?, version = version + 1
		WHERE public_ip = ? AND version = ?
	`, used, available, pool.IP, pool.Version)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}

	return nil
}

// InsertPortPool creates the pool row of pool.IP at version 0.
// It returns ErrVersionConflict when the row already exists.
func (r *Repository) InsertPortPool(ctx context.Context, pool models.PortPool) error {
	used, available, err := encodeSets(pool)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ports (public_ip, used, available, version)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(public_ip) DO NOTHING
	`, pool.IP, used, available)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}

	return nil
}

// RetireServer returns the port of serverID to its pool and deletes the record in one
// transaction. The pool is written first, conditionally on its version and on the record
// still existing; a nil pool leaves the pool row untouched. It returns ErrNotFound when
// the record is gone and ErrVersionConflict when the pool changed since it was read.
func (r *Repository) RetireServer(ctx context.Context, serverID string, pool *models.PortPool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if pool != nil {
		used, available, err := encodeSets(*pool)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE ports
			SET used = ?, available = ?, version = version + 1
			WHERE public_ip = ? AND version = ?
				AND EXISTS (SELECT 1 FROM servers WHERE server_id = ?)
		`, used, available, pool.IP, pool.Version, serverID)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists bool
			err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM servers WHERE server_id = ?)`, serverID,
			).Scan(&exists)
			if err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM servers WHERE server_id = ?`, serverID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// ListPortPools retrieves every pool row ordered by IP.
func (r *Repository) ListPortPools(ctx context.Context) ([]models.PortPool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT public_ip, used, available, version FROM ports ORDER BY public_ip`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pools []models.PortPool
	for rows.Next() {
		pool, err := scanPortPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *pool)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pools, nil
}

func scanPortPool(row scanner) (*models.PortPool, error) {
	var (
		pool            models.PortPool
		used, available string
	)

	if err := row.Scan(&pool.IP, &used, &available, &pool.Version); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(used), &pool.Used); err != nil {
		return nil, fmt.Errorf("decode used ports of %s: %w", pool.IP, err)
	}
	if err := json.Unmarshal([]byte(available), &pool.Available); err != nil {
		return nil, fmt.Errorf("decode available ports of %s: %w", pool.IP, err)
	}

	return &pool, nil
}

// encodeSets serializes both sets as JSON arrays, writing "[]" for empty sets.
func encodeSets(pool models.PortPool) (string, string, error) {
	enc := func(ports []int) (string, error) {
		if ports == nil {
			ports = []int{}
		}
		b, err := json.Marshal(ports)
		return string(b), err
	}

	used, err := enc(pool.Used)
	if err != nil {
		return "", "", err
	}
	available, err := enc(pool.Available)
	if err != nil {
		return "", "", err
	}

	return used, available, nil
}
