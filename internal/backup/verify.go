package backup

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// VerifiedMetrics is what a readable artifact proves about the export.
type VerifiedMetrics struct {
	Count int64
	Bytes int64
}

// VerifyIdentityArtifact reads an identity export ({"users": [...]}) and counts its
// records. Any read or decode problem is returned as *ParseFailure; the exporter may
// report success while leaving an unreadable file behind.
func VerifyIdentityArtifact(path string) (VerifiedMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return VerifiedMetrics{}, &ParseFailure{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return VerifiedMetrics{}, &ParseFailure{Path: path, Err: err}
	}

	count, err := countArrayField(bufio.NewReader(f), "users")
	if err != nil {
		return VerifiedMetrics{}, &ParseFailure{Path: path, Err: err}
	}

	return VerifiedMetrics{Count: count, Bytes: info.Size()}, nil
}

// identityRecord is the part of an exported user every record must carry.
type identityRecord struct {
	LocalID string `json:"localId"`
}

// countArrayField walks a JSON object token by token and counts the identity records
// of the named top-level array, decoding one record at a time.
func countArrayField(r io.Reader, field string) (int64, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return 0, err
	}

	var (
		count int64
		found bool
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return 0, fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return 0, fmt.Errorf("unexpected token %v", tok)
		}

		if key != field {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return 0, fmt.Errorf("read %q: %w", key, err)
			}
			continue
		}

		if found {
			return 0, fmt.Errorf("duplicate %q array", field)
		}
		if err := expectDelim(dec, '['); err != nil {
			return 0, fmt.Errorf("%q: %w", field, err)
		}
		for dec.More() {
			if err := decodeRecord(dec); err != nil {
				return 0, fmt.Errorf("record %d: %w", count, err)
			}
			count++
		}
		if err := expectDelim(dec, ']'); err != nil {
			return 0, fmt.Errorf("%q: %w", field, err)
		}
		found = true
	}

	if err := expectDelim(dec, '}'); err != nil {
		return 0, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return 0, errors.New("trailing data after export object")
	}
	if !found {
		return 0, fmt.Errorf("missing %q array", field)
	}
	return count, nil
}

// decodeRecord reads one array element and requires an object with a localId.
func decodeRecord(dec *json.Decoder) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if len(raw) == 0 || raw[0] != '{' {
		return errors.New("not an object")
	}
	var rec identityRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	if rec.LocalID == "" {
		return errors.New("missing localId")
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("expected %q: %w", want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
