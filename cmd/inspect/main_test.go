package main

import (
	"bytes"
	"dm-relay/repositories"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Inspect_Lists_Messages_And_Unread(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	repository, err := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.NoError(err)
	t.Cleanup(func() { _ = repository.Close() })

	at := time.Now().UTC()
	_, err = repository.Append(repositories.DiskMessage{Sender: "alice", Receiver: "bob", Content: "hello", At: at})
	req.NoError(err)
	_, err = repository.Append(repositories.DiskMessage{Sender: "carol", Receiver: "bob", Content: strings.Repeat("x", 60), At: at})
	req.NoError(err)

	var out bytes.Buffer
	req.NoError(inspect(db, "", "", false, &out))
	req.Contains(out.String(), "messages (2)")
	req.Contains(out.String(), "hello")
	req.Contains(out.String(), strings.Repeat("x", previewLength)+"...")

	out.Reset()
	req.NoError(inspect(db, "bob", "alice", false, &out))
	req.Contains(out.String(), "messages (1)")
	req.NotContains(out.String(), "carol")
}
