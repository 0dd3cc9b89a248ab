package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Payload container layout: 4-byte magic, 1-byte format version, 8-byte
// xxhash64 of the body, then the msgpack body. The checksum catches truncated
// or corrupted entries before they are deserialized into caller state.
var magic = [4]byte{'S', 'N', 'A', 'P'}

const (
	formatVersion = 1
	headerLen     = 4 + 1 + 8
)

var (
	// ErrCorrupt is returned by Decode when the container is truncated, has
	// the wrong magic, or fails its checksum.
	ErrCorrupt = errors.New("snapshot: corrupt payload")
	// ErrVersion is returned by Decode for an unknown format version.
	ErrVersion = errors.New("snapshot: unsupported payload version")
)

// Encode serializes value with msgpack and wraps it in the checksummed
// container.
func Encode(value any) ([]byte, error) {
	body, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal payload: %w", err)
	}
	buf := make([]byte, headerLen+len(body))
	copy(buf, magic[:])
	buf[4] = formatVersion
	binary.BigEndian.PutUint64(buf[5:], xxhash.Sum64(body))
	copy(buf[headerLen:], body)
	return buf, nil
}

// Decode verifies the container and deserializes the body into target, which
// must be a pointer.
func Decode(data []byte, target any) error {
	if len(data) < headerLen || [4]byte(data[:4]) != magic {
		return ErrCorrupt
	}
	if data[4] != formatVersion {
		return fmt.Errorf("%w: %d", ErrVersion, data[4])
	}
	body := data[headerLen:]
	if binary.BigEndian.Uint64(data[5:headerLen]) != xxhash.Sum64(body) {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if err := msgpack.Unmarshal(body, target); err != nil {
		return fmt.Errorf("snapshot: unmarshal payload: %w", err)
	}
	return nil
}
