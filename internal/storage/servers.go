package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/woozymasta/gameroom/internal/models"
)

const serverColumns = `server_id, ip, port, name, description, game, game_version,
	n_max_players, opened_on, ready_for_shutdown, country_code`

// NextServerID atomically advances the server id sequence and returns the new value.
// Values are never handed out twice, even when the records they were issued for are deleted.
func (r *Repository) NextServerID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE next_id SET value = value + 1 WHERE key = 'server_id' RETURNING value`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("server_id sequence is missing: %w", ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	return id, nil
}

// InsertServer persists a new game server record.
func (r *Repository) InsertServer(ctx context.Context, s models.GameServer) error {
	query := `
	INSERT INTO servers (` + serverColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ServerID, s.IP, s.Port, s.Name, nullString(s.Description), s.Game, s.GameVersion,
		s.MaxPlayers, s.OpenedOn, s.ReadyForShutdown, s.CountryCode,
	)

	return err
}

// GetServer retrieves a single record by its id. It returns ErrNotFound if there is none.
func (r *Repository) GetServer(ctx context.Context, serverID string) (*models.GameServer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE server_id = ?`, serverID)

	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ListServers retrieves every record ordered by numeric server id.
func (r *Repository) ListServers(ctx context.Context) ([]models.GameServer, error) {
	return r.queryServers(ctx,
		`SELECT `+serverColumns+` FROM servers ORDER BY CAST(server_id AS INTEGER)`)
}

// ListServersByGame retrieves the records whose game matches the LIKE pattern
// and whose game version is equal to version.
func (r *Repository) ListServersByGame(ctx context.Context, game, version string) ([]models.GameServer, error) {
	return r.queryServers(ctx, `
		SELECT `+serverColumns+`
		FROM servers
		WHERE game LIKE ? AND game_version = ?
		ORDER BY CAST(server_id AS INTEGER)
	`, game, version)
}

// ServersSubset retrieves the records of a game (all games when empty),
// optionally only those flagged ready for shutdown.
func (r *Repository) ServersSubset(ctx context.Context, game string, readyOnly bool) ([]models.GameServer, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE 1=1`
	var args []any

	if game != "" {
		query += ` AND game LIKE ?`
		args = append(args, game)
	}
	if readyOnly {
		query += ` AND ready_for_shutdown = 1`
	}
	query += ` ORDER BY CAST(server_id AS INTEGER)`

	return r.queryServers(ctx, query, args...)
}

// SetReadyForShutdown flags a record and returns the number of affected rows.
func (r *Repository) SetReadyForShutdown(ctx context.Context, serverID string, ready bool) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE servers SET ready_for_shutdown = ? WHERE server_id = ?`, ready, serverID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *Repository) queryServers(ctx context.Context, query string, args ...any) ([]models.GameServer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.GameServer
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (*models.GameServer, error) {
	var (
		s           models.GameServer
		description sql.NullString
	)

	err := row.Scan(
		&s.ServerID, &s.IP, &s.Port, &s.Name, &description, &s.Game, &s.GameVersion,
		&s.MaxPlayers, &s.OpenedOn, &s.ReadyForShutdown, &s.CountryCode,
	)
	if err != nil {
		return nil, err
	}
	s.Description = description.String

	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
