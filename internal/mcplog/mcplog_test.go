package mcplog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledLoggerWritesNothing(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, false, false)
	l.Request("search_symbols", map[string]any{"query": "x"})
	l.Response("search_symbols", "{}", time.Millisecond, "")

	dates, err := l.ListDates()
	require.NoError(t, err)
	require.Empty(t, dates)
}

func TestRequestResponseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, true, false)
	l.Request("search_symbols", map[string]any{"query": "x"})
	l.Response("search_symbols", `{"count":0}`, 5*time.Millisecond, "")

	records, err := l.Read("")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "request", records[0].Type)
	require.Equal(t, "response", records[1].Type)
	require.Equal(t, "search_symbols", records[1].Tool)
	require.NotZero(t, records[1].TokenEstimate)
}

func TestResponseTruncated(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, true, false)

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	l.Response("get_file_context", string(long), time.Millisecond, "")

	records, err := l.Read("")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Result, resultTruncateLen)
}

func TestSummariseAndClear(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, true, false)
	l.Request("a", nil)
	l.Response("a", "ok", 10*time.Millisecond, "")
	l.Request("a", nil)
	l.Response("a", "", 20*time.Millisecond, "boom")

	s, err := l.Summarise("")
	require.NoError(t, err)
	require.Equal(t, 2, s.Requests)
	require.Equal(t, 1, s.Errors)
	require.Equal(t, 2, s.ByTool["a"])
	require.Equal(t, int64(15), s.AvgMs["a"])

	dates, err := l.ListDates()
	require.NoError(t, err)
	require.Len(t, dates, 1)

	require.NoError(t, l.Clear())
	dates, err = l.ListDates()
	require.NoError(t, err)
	require.Empty(t, dates)
}
