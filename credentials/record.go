package credentials

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxFieldLen is the capacity of each field in bytes.
	MaxFieldLen = 128

	fieldSize = 2 + MaxFieldLen

	// RecordSize is the persisted size of a Record.
	RecordSize = 2 * fieldSize
)

// ErrCorruptRecord is returned when a persisted field length exceeds MaxFieldLen.
var ErrCorruptRecord = errors.New("corrupt credential record")

// Record is the saved network name and passphrase.
// A Record with an empty SSID means no credentials were saved.
type Record struct {
	SSID       string
	Passphrase string
}

// New builds a Record, truncating both values to MaxFieldLen bytes.
func New(ssid, passphrase string) Record {
	return Record{
		SSID:       truncate(ssid),
		Passphrase: truncate(passphrase),
	}
}

// Empty reports whether the record holds no network name.
func (r Record) Empty() bool {
	return r.SSID == ""
}

// String never prints the passphrase.
func (r Record) String() string {
	return fmt.Sprintf("ssid=%q passphrase=%d bytes", r.SSID, len(r.Passphrase))
}

// MarshalBinary encodes the record as two fields, each a little-endian
// uint16 length followed by a zero-padded MaxFieldLen buffer.
func (r Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	putField(buf[:fieldSize], truncate(r.SSID))
	putField(buf[fieldSize:], truncate(r.Passphrase))
	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("%w: short buffer of %d bytes", ErrCorruptRecord, len(data))
	}

	ssid, err := getField(data[:fieldSize])
	if err != nil {
		return fmt.Errorf("ssid: %w", err)
	}
	passphrase, err := getField(data[fieldSize:RecordSize])
	if err != nil {
		return fmt.Errorf("passphrase: %w", err)
	}

	r.SSID = ssid
	r.Passphrase = passphrase
	return nil
}

func putField(dst []byte, value string) {
	binary.LittleEndian.PutUint16(dst, uint16(len(value)))
	copy(dst[2:], value)
}

func getField(src []byte) (string, error) {
	n := int(binary.LittleEndian.Uint16(src))
	if n > MaxFieldLen {
		return "", fmt.Errorf("%w: field length %d", ErrCorruptRecord, n)
	}
	return string(src[2 : 2+n]), nil
}

// truncate cuts on a byte boundary, like the fixed buffers it replaces.
func truncate(s string) string {
	if len(s) > MaxFieldLen {
		return s[:MaxFieldLen]
	}
	return s
}
