package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Record("operator-1", "wlan1", "start", map[string]interface{}{"ssid": "lab"}, "SUCCESS", "")
	l.Record("operator-1", "wlan1", "stop", nil, "SUCCESS", "STOPPED")

	f, err := os.Open(l.FilePath())
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 2)
	assert.Equal(t, "start", entries[0].Action)
	assert.Equal(t, "lab", entries[0].Params["ssid"])
	assert.Equal(t, "STOPPED", entries[1].Code)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	l, err := NewLogger(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l.Record("operator-1", "", "start", nil, "SUCCESS", "")

	data, err := os.ReadFile(l.FilePath())
	require.NoError(t, err)
	assert.Empty(t, data)
}
