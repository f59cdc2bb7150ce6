// Package stops provides read-through access to static stop metadata.
package stops

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Stop is one entry from the point table. Immutable after load.
type Stop struct {
	Id   string  `db:"point_id" json:"id"`
	Lat  float64 `db:"latitude" json:"lat"`
	Lon  float64 `db:"longitude" json:"lng"`
	Name string  `db:"name" json:"name"`
	Mode string  `db:"mode" json:"mode"`
}

// Connection is one entry from the connection table, a directed line edge
// between two stops.
type Connection struct {
	OriginPointId      string `db:"origin_point_id"`
	DestinationPointId string `db:"destination_point_id"`
	LineId             string `db:"line_id"`
	Direction          string `db:"direction"`
}

// Directory memoizes stop lookups from the database. Safe for concurrent use
// by query handlers and the refresh loop.
type Directory struct {
	db    *sqlx.DB
	mu    sync.Mutex
	cache map[string]*Stop
}

// MakeDirectory builds a Directory over db.
func MakeDirectory(db *sqlx.DB) *Directory {
	return &Directory{
		db:    db,
		cache: make(map[string]*Stop),
	}
}

// get retrieves a stop through the cache. Returns nil when the stop is not
// present in the point table; the miss is cached as well.
func (d *Directory) get(stopId string) *Stop {
	d.mu.Lock()
	defer d.mu.Unlock()
	if stop, present := d.cache[stopId]; present {
		return stop
	}
	stop := Stop{}
	err := d.db.Get(&stop, d.db.Rebind("select * from point where point_id = ?"), stopId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			//treat unexpected database errors like a miss, they surface as name == id
			d.cache[stopId] = nil
			return nil
		}
		d.cache[stopId] = nil
		return nil
	}
	d.cache[stopId] = &stop
	return &stop
}

// Name returns the display name for stopId, or the id itself when unknown.
func (d *Directory) Name(stopId string) string {
	if stop := d.get(stopId); stop != nil {
		return stop.Name
	}
	return stopId
}

// Coord returns the longitude and latitude of stopId.
// ok is false when the stop is unknown.
func (d *Directory) Coord(stopId string) (lon, lat float64, ok bool) {
	if stop := d.get(stopId); stop != nil {
		return stop.Lon, stop.Lat, true
	}
	return 0, 0, false
}

// Mode returns the transport mode of stopId, or empty when unknown.
func (d *Directory) Mode(stopId string) string {
	if stop := d.get(stopId); stop != nil {
		return stop.Mode
	}
	return ""
}

// ByMode retrieves all stops with the given mode.
func (d *Directory) ByMode(mode string) ([]Stop, error) {
	var results []Stop
	err := d.db.Select(&results, d.db.Rebind("select * from point where mode = ?"), mode)
	if err != nil {
		return nil, fmt.Errorf("selecting stops with mode %s: %w", mode, err)
	}
	return results, nil
}

// All retrieves every stop in the directory.
func (d *Directory) All() ([]Stop, error) {
	var results []Stop
	err := d.db.Select(&results, "select * from point")
	if err != nil {
		return nil, fmt.Errorf("selecting all stops: %w", err)
	}
	return results, nil
}

// SearchByName retrieves stops whose name contains query, case-insensitively.
func (d *Directory) SearchByName(query string) ([]Stop, error) {
	var results []Stop
	statement := d.db.Rebind("select * from point where lower(name) like ?")
	err := d.db.Select(&results, statement, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("searching stops for %q: %w", query, err)
	}
	return results, nil
}

// LinesAt retrieves the distinct line ids departing stopId together with the
// set of destination stop modes each line reaches from there.
func (d *Directory) LinesAt(stopId string) (map[string]map[string]bool, error) {
	var rows []struct {
		LineId string `db:"line_id"`
		Mode   string `db:"mode"`
	}
	statement := d.db.Rebind(
		"select c.line_id, coalesce(p.mode, '') as mode from connection c " +
			"left join point p on p.point_id = c.destination_point_id " +
			"where c.origin_point_id = ?")
	err := d.db.Select(&rows, statement, stopId)
	if err != nil {
		return nil, fmt.Errorf("selecting lines at stop %s: %w", stopId, err)
	}
	lines := make(map[string]map[string]bool)
	for _, row := range rows {
		if lines[row.LineId] == nil {
			lines[row.LineId] = make(map[string]bool)
		}
		if row.Mode != "" {
			lines[row.LineId][row.Mode] = true
		}
	}
	return lines, nil
}
