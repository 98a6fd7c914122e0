package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MagicNumber starts every archive: "CLOG_BKP".
var MagicNumber = [8]byte{'C', 'L', 'O', 'G', '_', 'B', 'K', 'P'}

// FormatVersion is the current archive format version.
const FormatVersion = 1

const maxHeaderLength = 1024 * 1024

// KDFParams records the Argon2id parameters of the archive key.
type KDFParams struct {
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// Header is the plaintext archive metadata. It is covered by the HMAC.
type Header struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	User          string    `json:"user"`
	KDFParams     KDFParams `json:"kdf_params"`
	IncludesAudit bool      `json:"includes_audit"`
	EntryCount    int       `json:"entry_count"`
	ChecksumAlgo  string    `json:"checksum_algorithm"`
}

// File is one archived file, named relative to its base directory with
// forward slashes.
type File struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Payload is the encrypted part of an archive.
type Payload struct {
	Salt     []byte `json:"salt"`      // key chain salt file
	PassHash []byte `json:"pass_hash"` // encoded password hash
	Entries  []File `json:"entries"`   // sealed entries below <logs>/<user>
	Audit    []File `json:"audit"`     // audit trail below <keys>/<user>/audit
}

// WriteHeader writes the magic number and header to w.
func WriteHeader(w io.Writer, header *Header) error {
	if _, err := w.Write(MagicNumber[:]); err != nil {
		return fmt.Errorf("backup: failed to write magic number: %w", err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("backup: failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(headerJSON))); err != nil {
		return fmt.Errorf("backup: failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("backup: failed to write header: %w", err)
	}
	return nil
}

// ReadHeader reads and validates the magic number and header from r.
func ReadHeader(r io.Reader) (*Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, ErrInvalidMagic
	}
	if magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	var headerLen uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("%w: header length", ErrTruncated)
	}
	if headerLen > maxHeaderLength {
		return nil, fmt.Errorf("backup: header too large: %d bytes", headerLen)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("%w: header", ErrTruncated)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("backup: failed to unmarshal header: %w", err)
	}
	if header.Version > FormatVersion || header.Version < 1 {
		return nil, fmt.Errorf("%w: got %d, max supported %d",
			ErrUnsupportedVersion, header.Version, FormatVersion)
	}
	return &header, nil
}

func encodePayload(payload *Payload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to marshal payload: %w", err)
	}
	return data, nil
}

func decodePayload(data []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("backup: failed to unmarshal payload: %w", err)
	}
	return &payload, nil
}
