package storage_test

import (
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/storage"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderName(t *testing.T) {
	assert.Equal(t, "my_cool_server__123", storage.FolderName("My Cool Server!", "123"))
}

func TestMessageLog_AppendAndResolve(t *testing.T) {
	dir := t.TempDir()
	log, err := storage.NewMessageLog(dir, quietLogger())
	require.NoError(t, err)

	msg := models.InboundMessage{
		CommunityID:       "900000000000000001",
		CommunityName:     "Test Guild",
		AuthorID:          authorA,
		AuthorDisplayName: "alice",
		Content:           "hello",
		ReceivedAt:        time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	require.NoError(t, log.Append(msg))
	msg.Content = "again"
	require.NoError(t, log.Append(msg))

	// skipped: automated and DM
	require.NoError(t, log.Append(models.InboundMessage{CommunityID: "1", CommunityName: "x", IsAutomated: true}))
	require.NoError(t, log.Append(models.InboundMessage{Content: "dm"}))

	folders, err := log.Communities()
	require.NoError(t, err)
	assert.Equal(t, []string{"test_guild_900000000000000001"}, folders)

	path, err := log.Resolve("TEST_GUILD_900000000000000001")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"[2025-02-03 04:05:06] alice ("+authorA+"): hello\n[2025-02-03 04:05:06] alice ("+authorA+"): again\n",
		string(data))
	assert.Equal(t, filepath.Join(dir, "test_guild_900000000000000001", "messages.txt"), path)

	_, err = log.Resolve("nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
