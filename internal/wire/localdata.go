package wire

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/dataobj"
)

// LocalData is a subworker's description of a result it produced.
type LocalData struct {
	Type data.Type
	// UnknownType holds the raw tag when it names no known type. Type is
	// then zero.
	UnknownType string
	Storage     Storage
}

// TypeName is the type tag as the subworker sent it.
func (l LocalData) TypeName() string {
	if l.Type == 0 && l.UnknownType != "" {
		return l.UnknownType
	}
	return l.Type.String()
}

// Storage is the wire-level location of a result. The variants are
// MemoryStorage, PathStorage, InWorkerStorage, and UnknownStorage for
// anything this worker does not understand.
type Storage interface {
	isWireStorage()
}

// MemoryStorage carries the bytes inline.
type MemoryStorage struct {
	Bytes []byte
}

// PathStorage names a file inside the subworker's private work directory.
type PathStorage struct {
	Path string
}

// InWorkerStorage refers to an object the worker already holds.
type InWorkerStorage struct {
	ID dataobj.ID
}

// UnknownStorage is any storage shape other than exactly one known key.
type UnknownStorage struct {
	Kind string
}

func (MemoryStorage) isWireStorage()   {}
func (PathStorage) isWireStorage()     {}
func (InWorkerStorage) isWireStorage() {}
func (UnknownStorage) isWireStorage()  {}

const (
	storageMemory   = "memory"
	storagePath     = "path"
	storageInWorker = "in_worker"
)

type localDataJSON struct {
	Type    string                     `json:"type,omitempty"`
	Storage map[string]json.RawMessage `json:"storage"`
}

// MarshalJSON implements json.Marshaler.
func (l LocalData) MarshalJSON() ([]byte, error) {
	var (
		key string
		val any
	)
	switch s := l.Storage.(type) {
	case MemoryStorage:
		key, val = storageMemory, s.Bytes
	case PathStorage:
		key, val = storagePath, s.Path
	case InWorkerStorage:
		key, val = storageInWorker, s.ID
	case UnknownStorage:
		key, val = s.Kind, nil
	default:
		return nil, fmt.Errorf("cannot marshal storage %T", s)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	typeName := l.UnknownType
	if l.Type != 0 {
		text, err := l.Type.MarshalText()
		if err != nil {
			return nil, err
		}
		typeName = string(text)
	}
	return json.Marshal(localDataJSON{
		Type:    typeName,
		Storage: map[string]json.RawMessage{key: raw},
	})
}

// UnmarshalJSON implements json.Unmarshaler. An unknown type tag or a
// storage object that does not hold exactly one known key decodes without
// error, so the localizer can reject it explicitly.
func (l *LocalData) UnmarshalJSON(raw []byte) error {
	var in localDataJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	l.Type, l.UnknownType = 0, ""
	if in.Type != "" {
		if typ, err := data.ParseType(in.Type); err == nil {
			l.Type = typ
		} else {
			l.UnknownType = in.Type
		}
	}

	if len(in.Storage) != 1 {
		keys := make([]string, 0, len(in.Storage))
		for k := range in.Storage {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		l.Storage = UnknownStorage{Kind: fmt.Sprintf("%v", keys)}
		return nil
	}

	for key, val := range in.Storage {
		switch key {
		case storageMemory:
			var b []byte
			if err := json.Unmarshal(val, &b); err != nil {
				return fmt.Errorf("invalid memory storage: %w", err)
			}
			l.Storage = MemoryStorage{Bytes: b}
		case storagePath:
			var p string
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("invalid path storage: %w", err)
			}
			l.Storage = PathStorage{Path: p}
		case storageInWorker:
			var id dataobj.ID
			if err := json.Unmarshal(val, &id); err != nil {
				return fmt.Errorf("invalid in_worker storage: %w", err)
			}
			l.Storage = InWorkerStorage{ID: id}
		default:
			l.Storage = UnknownStorage{Kind: key}
		}
	}
	return nil
}
