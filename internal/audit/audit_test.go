package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/gram/internal/audit"
	"github.com/untoldecay/gram/internal/graph"
)

func TestRecordAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	log, err := audit.Open(dir, "alice")
	require.NoError(t, err)

	id, err := graph.NewId()
	require.NoError(t, err)
	require.NoError(t, log.Record(audit.Mutation(audit.KindAdd, id)))
	require.NoError(t, log.Record(audit.Mutation(audit.KindSwap, id)))
	require.NoError(t, log.Close())

	f, err := os.Open(filepath.Join(dir, audit.FileName))
	require.NoError(t, err)
	defer f.Close()

	var lines []audit.Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e audit.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	require.Equal(t, audit.KindAdd, lines[0].Kind)
	require.Equal(t, "alice", lines[0].Actor)
	require.Equal(t, id.String(), lines[0].Id)
	require.Equal(t, audit.KindSwap, lines[1].Kind)
}

func TestFailedAttachesError(t *testing.T) {
	id, err := graph.NewId()
	require.NoError(t, err)
	e := audit.Failed(audit.Mutation(audit.KindRemove, id), os.ErrNotExist)
	require.Equal(t, os.ErrNotExist.Error(), e.Error)
}
