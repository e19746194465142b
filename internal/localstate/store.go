// Package localstate keeps per-caller UI state (custom roles, form drafts) behind typed,
// versioned repositories.
package localstate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned by backends for a missing key.
	ErrNotFound = errors.New("localstate: key not found")
	// ErrFutureSchema is returned when a stored record was written by a newer schema.
	ErrFutureSchema = errors.New("localstate: stored schema version is newer than supported")
)

// Record is a stored value tagged with the schema version that wrote it.
// Version 0 marks a bare value written before records were versioned.
type Record struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// Backend persists records by key. Writes are last-write-wins; there is no locking
// between concurrent writers of the same key.
type Backend interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, rec Record) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

func encodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}

// decodeRecord accepts both the versioned envelope and legacy bare values.
func decodeRecord(raw []byte) Record {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if v, hasV := probe["v"]; hasV {
				if data, hasData := probe["data"]; hasData {
					var version int
					if err := json.Unmarshal(v, &version); err == nil {
						return Record{Version: version, Data: data}
					}
				}
			}
		}
	}
	return Record{Version: 0, Data: append(json.RawMessage(nil), trimmed...)}
}
