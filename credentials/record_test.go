package credentials

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Truncates(t *testing.T) {
	long := strings.Repeat("x", MaxFieldLen+10)
	rec := New(long, long)

	assert.Len(t, rec.SSID, MaxFieldLen)
	assert.Len(t, rec.Passphrase, MaxFieldLen)
}

func TestRecord_FullCapacityRoundTrip(t *testing.T) {
	rec := New(strings.Repeat("s", MaxFieldLen), strings.Repeat("p", MaxFieldLen))

	buf, err := rec.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, RecordSize)

	var decoded Record
	require.NoError(t, decoded.UnmarshalBinary(buf))
	assert.Equal(t, rec, decoded)
}

func TestRecord_ZeroedBufferIsEmpty(t *testing.T) {
	var rec Record
	require.NoError(t, rec.UnmarshalBinary(make([]byte, RecordSize)))
	assert.True(t, rec.Empty())
	assert.Equal(t, "", rec.Passphrase)
}

func TestRecord_CorruptLength(t *testing.T) {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint16(buf, MaxFieldLen+1)

	var rec Record
	assert.ErrorIs(t, rec.UnmarshalBinary(buf), ErrCorruptRecord)
	assert.ErrorIs(t, rec.UnmarshalBinary(buf[:10]), ErrCorruptRecord)
}

func TestRecord_StringHidesPassphrase(t *testing.T) {
	rec := New("HomeNet", "secret123")
	assert.NotContains(t, rec.String(), "secret123")
	assert.Contains(t, rec.String(), "HomeNet")
}
