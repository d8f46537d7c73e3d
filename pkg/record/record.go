package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrAbsent is returned by Decode when the payload describes no record.
	ErrAbsent = errors.New("record absent")
	// ErrDecode wraps payloads that are not a record object.
	ErrDecode = errors.New("decode record")
	// ErrEncode wraps records that cannot be rendered as a JSON line.
	ErrEncode = errors.New("encode record")
)

// Record is one leaderboard entry as served by the records endpoint. Every
// field is optional; absent fields are written as null so the output keeps a
// fixed shape regardless of what upstream sent.
type Record struct {
	ID             *uint64      `json:"id"`
	SteamID64      *string      `json:"steamid64"`
	PlayerName     *string      `json:"player_name"`
	SteamID        *string      `json:"steam_id"`
	ServerID       *int64       `json:"server_id"`
	MapID          *int64       `json:"map_id"`
	Stage          *int64       `json:"stage"`
	Mode           *string      `json:"mode"`
	Tickrate       *int64       `json:"tickrate"`
	Time           *json.Number `json:"time"`
	Teleports      *int64       `json:"teleports"`
	CreatedOn      *string      `json:"created_on"`
	UpdatedOn      *string      `json:"updated_on"`
	UpdatedBy      *int64       `json:"updated_by"`
	RecordFilterID *int64       `json:"record_filter_id"`
	ServerName     *string      `json:"server_name"`
	MapName        *string      `json:"map_name"`
	Points         *int64       `json:"points"`
	ReplayID       *int64       `json:"replay_id"`
}

// Label identifies the record in log lines.
func (r Record) Label() string {
	if r.ID == nil {
		return "#?"
	}
	return "#" + strconv.FormatUint(*r.ID, 10)
}

// Decode parses a response body into a Record. An empty body or a JSON null
// yields ErrAbsent.
func Decode(raw []byte) (Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Record{}, ErrAbsent
	}
	if trimmed[0] != '{' {
		return Record{}, fmt.Errorf("%w: expected object, got %q", ErrDecode, preview(trimmed))
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return rec, nil
}

// Encode renders the record as a single JSON line terminated by '\n'.
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrEncode, rec.Label(), err)
	}
	return append(data, '\n'), nil
}

func preview(b []byte) string {
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}
	return string(b)
}
