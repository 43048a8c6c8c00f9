package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndPath(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	rel, err := s.Save(filepath.Join("evt-1", "timetable.csv"), []byte("id\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("evt-1", "timetable.csv"), rel)

	raw, err := os.ReadFile(s.Path(rel))
	require.NoError(t, err)
	assert.Equal(t, "id\n", string(raw))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("old.ics", []byte("BEGIN:VCALENDAR"))
	require.NoError(t, err)
	_, err = s.Save("new.ics", []byte("BEGIN:VCALENDAR"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(s.Path("old.ics"), past, past))

	deleted, err := s.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.ics"}, deleted)
	_, err = os.Stat(s.Path("new.ics"))
	assert.NoError(t, err)
}
