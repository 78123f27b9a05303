package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a snapshot cannot be decoded into a Dataset.
var ErrMalformed = errors.New("malformed snapshot")

// Dataset is the full synced content: every profile, fever reading and
// prescription. Its JSON shape is the backup and remote file format.
type Dataset struct {
	Users         []Profile      `json:"users"`
	FeverLogs     []FeverRecord  `json:"feverLogs"`
	Prescriptions []Prescription `json:"prescriptions"`
}

// Normalized returns a copy whose collections are non-nil, so that empty
// collections encode as [] rather than null.
func (d Dataset) Normalized() Dataset {
	if d.Users == nil {
		d.Users = []Profile{}
	}
	if d.FeverLogs == nil {
		d.FeverLogs = []FeverRecord{}
	}
	if d.Prescriptions == nil {
		d.Prescriptions = []Prescription{}
	}
	return d
}

// Clone returns a deep copy.
func (d Dataset) Clone() Dataset {
	return Dataset{
		Users:         append([]Profile{}, d.Users...),
		FeverLogs:     append([]FeverRecord{}, d.FeverLogs...),
		Prescriptions: append([]Prescription{}, d.Prescriptions...),
	}
}

// Empty reports whether all collections are empty.
func (d Dataset) Empty() bool {
	return len(d.Users) == 0 && len(d.FeverLogs) == 0 && len(d.Prescriptions) == 0
}

// Encode returns the canonical indented JSON encoding.
func (d Dataset) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d.Normalized(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}
	return data, nil
}

// Equal reports whether a and b have the same canonical encoding.
func Equal(a, b Dataset) bool {
	ea, errA := a.Encode()
	eb, errB := b.Encode()
	return errA == nil && errB == nil && bytes.Equal(ea, eb)
}

// rawDataset keeps each collection undecoded so that presence and type can
// be checked per field.
type rawDataset struct {
	Users         json.RawMessage `json:"users"`
	FeverLogs     json.RawMessage `json:"feverLogs"`
	Prescriptions json.RawMessage `json:"prescriptions"`
}

// DecodeSnapshot parses remote file content. The top level must be an
// object; absent collections are empty. A wrongly typed collection or a
// record with an empty id is malformed. Duplicate ids keep the first record.
func DecodeSnapshot(data []byte) (Dataset, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return Dataset{}, err
	}
	return decodeCollections(raw)
}

// DecodeImport parses a backup file. In addition to the snapshot rules the
// users collection must be present as an array.
func DecodeImport(data []byte) (Dataset, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return Dataset{}, err
	}
	if !isArray(raw.Users) {
		return Dataset{}, fmt.Errorf("%w: users must be an array", ErrMalformed)
	}
	return decodeCollections(raw)
}

func decodeRaw(data []byte) (rawDataset, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return rawDataset{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	var raw rawDataset
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return rawDataset{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return raw, nil
}

func decodeCollections(raw rawDataset) (Dataset, error) {
	var ds Dataset
	var err error
	if ds.Users, err = decodeCollection[Profile]("users", raw.Users); err != nil {
		return Dataset{}, err
	}
	if ds.FeverLogs, err = decodeCollection[FeverRecord]("feverLogs", raw.FeverLogs); err != nil {
		return Dataset{}, err
	}
	if ds.Prescriptions, err = decodeCollection[Prescription]("prescriptions", raw.Prescriptions); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func decodeCollection[T Record](name string, raw json.RawMessage) ([]T, error) {
	if isAbsent(raw) {
		return []T{}, nil
	}
	if !isArray(raw) {
		return nil, fmt.Errorf("%w: %s must be an array", ErrMalformed, name)
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	for i, r := range records {
		if r.RecordID() == "" {
			return nil, fmt.Errorf("%w: %s[%d] has no id", ErrMalformed, name, i)
		}
	}
	return Dedupe(records), nil
}

// Dedupe drops records whose id was already seen, keeping order.
func Dedupe[T Record](records []T) []T {
	seen := make(map[string]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.RecordID()]; ok {
			continue
		}
		seen[r.RecordID()] = struct{}{}
		out = append(out, r)
	}
	return out
}

func isAbsent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}
