// Package models defines the data structures used for API responses and database persistence.
package models

import (
	"net"
	"net/http"
	"strconv"
	"time"
)

// GameServer is the full projection of a registered game server record.
type GameServer struct {
	OpenedOn         time.Time `json:"opened_on"`
	ServerID         string    `json:"server_id"`
	IP               string    `json:"ip"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Game             string    `json:"game"`
	GameVersion      string    `json:"game_version"`
	CountryCode      string    `json:"country_code,omitempty"`
	Port             int       `json:"port"`
	MaxPlayers       int       `json:"n_max_players"`
	ReadyForShutdown bool      `json:"ready_for_shutdown"`
}

// GameServerSlim is the projection used by list and create responses.
// It omits server-internal fields.
type GameServerSlim struct {
	ServerID    string `json:"server_id"`
	IP          string `json:"ip"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Game        string `json:"game"`
	GameVersion string `json:"game_version"`
	Port        int    `json:"port"`
	MaxPlayers  int    `json:"n_max_players"`
}

// Slim returns the slim projection of the record.
func (g GameServer) Slim() GameServerSlim {
	return GameServerSlim{
		ServerID:    g.ServerID,
		IP:          g.IP,
		Name:        g.Name,
		Description: g.Description,
		Game:        g.Game,
		GameVersion: g.GameVersion,
		Port:        g.Port,
		MaxPlayers:  g.MaxPlayers,
	}
}

// Address returns the "ip:port" form used in logs.
func (g GameServer) Address() string {
	return net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
}

// CreateRequest holds the validated input of a create operation.
type CreateRequest struct {
	Name        string
	Description string
	Game        string
	GameVersion string
	MaxPlayers  int
}

// Wire names of the create input properties, in validation order.
const (
	FieldName        = "name"
	FieldGame        = "game"
	FieldGameVersion = "game_version"
	FieldMaxPlayers  = "n_max_players"
	FieldDescription = "description"
)

// PortPool is the per-IP partition of ports into used and available sets.
// Version is bumped on every write and used for compare-and-swap updates.
type PortPool struct {
	IP        string `json:"ip"`
	Used      []int  `json:"used"`
	Available []int  `json:"available"`
	Version   int64  `json:"version"`
}

// Response is the envelope of every API response.
type Response struct {
	Data         any    `json:"data,omitempty"`
	StatusReason string `json:"status_reason"`
	Error        string `json:"error,omitempty"`
	StatusCode   int    `json:"status_code"`
}

// NewResponse builds a success envelope for the given status.
func NewResponse(status int, data any) Response {
	return Response{
		StatusCode:   status,
		StatusReason: http.StatusText(status),
		Data:         data,
	}
}

// NewErrorResponse builds an error envelope for the given status.
func NewErrorResponse(status int, msg string) Response {
	return Response{
		StatusCode:   status,
		StatusReason: http.StatusText(status),
		Error:        msg,
	}
}
