package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is a config file pointing at a fresh database.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`database:
  driver: sqlite3
  dsn: %s
integration:
  site_id: test-site
log:
  level: error
`, filepath.Join(dir, "msync.db"))
	path := filepath.Join(dir, "msync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &testEnv{dir: dir, config: path}
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with --config prepended.
func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// decodeData decodes the data of a JSON CLIResponse into dest.
func decodeData(t *testing.T, out string, dest any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, dest))
}

const bufferJSONL = `{"record_id":"r1","table_name":"name","action":"upsert","seq":1,"data":{"ID":"n1","name":"Central Store","code":"CS","type":"store","customer":false,"supplier":true}}
{"record_id":"r2","table_name":"name","action":"upsert","seq":2,"data":{"ID":"n2","name":"Central Stores","code":"CS2","type":"store","customer":false,"supplier":true}}
{"record_id":"r3","table_name":"unit","action":"upsert","seq":3,"data":{"ID":"u1","units":"Tab"}}
{"record_id":"r4","table_name":"unit","action":"upsert","seq":4,"data":{"ID":"u2"}}
{"record_id":"r5","table_name":"name","action":"merge","seq":5,"data":{"mergeIdToKeep":"n1","mergeIdToDelete":"n2"}}
`
