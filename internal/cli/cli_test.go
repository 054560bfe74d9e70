package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type result struct {
	stdout string
	stderr string
	code   int
}

// regtree runs the CLI against the sqlite file db.
func regtree(t *testing.T, db string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--backend", "sqlite", "--db", db}, args...)
	code := Execute(context.Background(), full, strings.NewReader(""), &out, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	res := regtree(t, db, args...)
	require.Equal(t, ExitSuccess, res.code, "regtree %v: %s", args, res.stderr)
	return res.stdout
}

func tempDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "hive.db")
}

func seed(t *testing.T, db string) {
	t.Helper()
	mustRun(t, db, "write", "Software/Acme", "Build", "42", "--type", "dword")
	mustRun(t, db, "write", "Software/Acme", "Name", "regtree")
	mustRun(t, db, "write", "Software/Acme", "", "default")
	mustRun(t, db, "write", "Software/Acme", "Home", `%USERPROFILE%\acme`, "-t", "expand")
	mustRun(t, db, "write", "Software/Acme", "Big", "0x100000000", "-t", "qword")
	mustRun(t, db, "write", "Software/Acme/Paths", "Search", "a", "b", "-t", "multi")
	mustRun(t, db, "write", `Software\Zeta`, "Blob", "cafe", "-t", "binary")
}

func TestWriteRead(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "write", "a/b", "x", "42", "-t", "dword")
	assert.Equal(t, "42\n", mustRun(t, db, "read", "a/b", "x"))

	mustRun(t, db, "write", "a//b/", "y", "s")
	assert.Equal(t, "s\n", mustRun(t, db, "read", `a\b`, "y"))
	assert.Equal(t, "s (string)\n", mustRun(t, db, "read", "a/b", "y", "--verbose"))
}

func TestRead_JSON(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "write", "Software/Acme", "Build", "-1", "-t", "dword")

	out := mustRun(t, db, "read", "software/acme", "build", "--format", "json")

	var resp struct {
		Status string      `json:"status"`
		Data   ValueResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, `HKEY_CURRENT_USER\software\acme`, resp.Data.Path)
	assert.Equal(t, "dword", resp.Data.Type)
	assert.Equal(t, float64(0xffffffff), resp.Data.Data)
}

func TestRead_Missing(t *testing.T) {
	db := tempDB(t)
	res := regtree(t, db, "read", "nowhere", "x")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [E002]")
	assert.Empty(t, res.stdout)

	res = regtree(t, db, "read", "nowhere", "x", "--format", "json")
	assert.Equal(t, ExitFailure, res.code)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestWrite_BadValue(t *testing.T) {
	db := tempDB(t)
	tests := [][]string{
		{"write", "a", "x", "nope", "-t", "dword"},
		{"write", "a", "x", "zz", "-t", "binary"},
		{"write", "a", "x", "1", "2"},
		{"write", "a", "x"},
		{"write", "a", "x", "-t", "dword"},
		{"write", "a", "x", "1", "-t", "float"},
	}
	for _, args := range tests {
		res := regtree(t, db, args...)
		assert.Equal(t, ExitCommandError, res.code, "%v", args)
		assert.Contains(t, res.stderr, "Error [E006]", "%v", args)
	}
}

func TestWrite_EmptyMulti(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "write", "a", "list", "-t", "multi")

	out := mustRun(t, db, "read", "a", "list", "--format", "json")
	var resp struct {
		Data ValueResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "multi", resp.Data.Type)
	assert.Empty(t, resp.Data.Data)

	assert.Equal(t, "values: 1\nsubkeys: 0\n", mustRun(t, db, "count", "a"))
}

func TestVerbose_DumpsOperationCounters(t *testing.T) {
	db := tempDB(t)
	res := regtree(t, db, "write", "a", "x", "1", "--verbose")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stderr, `regtree_operations_total{operation="write",status="ok"} 1`)

	res = regtree(t, db, "read", "a", "missing", "--verbose")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, `regtree_operations_total{operation="read",status="error"} 1`)

	res = regtree(t, db, "read", "a", "x")
	require.Equal(t, ExitSuccess, res.code)
	assert.NotContains(t, res.stderr, "regtree_operations_total")
}

func TestWrite_ReadOnly(t *testing.T) {
	db := tempDB(t)
	res := regtree(t, db, "write", "a", "x", "1", "--readonly")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [E004]")

	assert.Equal(t, "values: 0\nsubkeys: 1\n", mustRun(t, db, "count"))
}

func TestWrite_Volatile(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "write", "session", "pid", "7", "-t", "dword", "--volatile")

	// Volatile keys do not survive reopening the sqlite file
	res := regtree(t, db, "read", "session", "pid")
	assert.Equal(t, ExitFailure, res.code)
}

func TestDeleteValue(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "write", "a", "x", "1")

	mustRun(t, db, "delete-value", "a", "x")
	mustRun(t, db, "delete-value", "a", "x")
	mustRun(t, db, "delete-value", "nowhere", "x")

	res := regtree(t, db, "delete-value", "a", "x", "--strict")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "value not found")
}

func TestDeleteKey(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "write", "a/b/c", "x", "1")

	res := regtree(t, db, "delete-key", "a")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [E005]")

	mustRun(t, db, "delete-key", "a", "--recursive")
	assert.Equal(t, "values: 0\nsubkeys: 0\n", mustRun(t, db, "count"))

	mustRun(t, db, "delete-key", "a")
	res = regtree(t, db, "delete-key", "a", "--strict")
	assert.Equal(t, ExitFailure, res.code)

	res = regtree(t, db, "delete-key", "/")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [E003]")
}

func TestCount(t *testing.T) {
	db := tempDB(t)
	seed(t, db)

	assert.Equal(t, "values: 5\nsubkeys: 1\n", mustRun(t, db, "count", "Software/Acme"))
	assert.Equal(t, "values: 0\nsubkeys: 1\n", mustRun(t, db, "count"))

	out := mustRun(t, db, "count", "Software", "--format", "json")
	var resp struct {
		Data CountResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, CountResult{Path: `HKEY_CURRENT_USER\Software`, Values: 0, SubKeys: 2}, resp.Data)

	res := regtree(t, db, "count", "missing")
	assert.Equal(t, ExitFailure, res.code)
}

func TestTree_Golden(t *testing.T) {
	db := tempDB(t)
	seed(t, db)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "tree", []byte(mustRun(t, db, "tree", "Software")))
	g.Assert(t, "tree_depth", []byte(mustRun(t, db, "tree", "/Software/Acme/", "--depth", "0")))
}

func TestTree_JSON(t *testing.T) {
	db := tempDB(t)
	seed(t, db)

	out := mustRun(t, db, "tree", "Software/Acme/Paths", "--format", "json")
	var resp struct {
		Data Node `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, `HKEY_CURRENT_USER\Software\Acme\Paths`, resp.Data.Name)
	require.Len(t, resp.Data.Values, 1)
	assert.Equal(t, "multi", resp.Data.Values[0].Type)
	assert.Equal(t, []any{"a", "b"}, resp.Data.Values[0].Data)
}

func TestExportImport_RoundTrip(t *testing.T) {
	db := tempDB(t)
	seed(t, db)
	mustRun(t, db, "write", "Software/Empty/Leaf", "x", "1", "-t", "dword")
	mustRun(t, db, "delete-value", "Software/Empty/Leaf", "x")

	exported := mustRun(t, db, "export", "Software")
	var original Node
	require.NoError(t, yaml.Unmarshal([]byte(exported), &original))
	assert.Equal(t, "Software", original.Name)

	file := filepath.Join(t.TempDir(), "software.yaml")
	require.NoError(t, os.WriteFile(file, []byte(exported), 0o600))

	res := regtree(t, db, "import", file, "Copy", "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var resp struct {
		Data ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, 7, resp.Data.Written)

	var copied Node
	require.NoError(t, yaml.Unmarshal([]byte(mustRun(t, db, "export", "Copy")), &copied))
	assert.Equal(t, "Copy", copied.Name)

	copied.Name = original.Name
	assert.Equal(t, original, copied)

	// Empty keys survive the round trip
	assert.Equal(t, "values: 0\nsubkeys: 0\n", mustRun(t, db, "count", "Copy/Empty/Leaf"))
}

func TestExport_ToFile(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "write", "a", "x", "hello")

	file := filepath.Join(t.TempDir(), "out.yaml")
	assert.Empty(t, mustRun(t, db, "export", "a", "-o", file))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var n Node
	require.NoError(t, yaml.Unmarshal(data, &n))
	require.Len(t, n.Values, 1)
	assert.Equal(t, "hello", n.Values[0].Data)
}

func TestImport_Stdin(t *testing.T) {
	db := tempDB(t)
	doc := `
name: ignored
values:
  - name: Port
    type: dword
    data: 8080
keys:
  - name: Hosts
    values:
      - name: List
        type: multi
        data: [alpha, beta]
`
	var out, errOut bytes.Buffer
	code := Execute(context.Background(),
		[]string{"--backend", "sqlite", "--db", db, "import", "-", "Service"},
		strings.NewReader(doc), &out, &errOut)
	require.Equal(t, ExitSuccess, code, errOut.String())

	assert.Equal(t, "8080\n", mustRun(t, db, "read", "Service", "Port"))
	assert.Equal(t, "alpha, beta\n", mustRun(t, db, "read", "Service/Hosts", "List"))
}

func TestImport_Invalid(t *testing.T) {
	db := tempDB(t)

	res := regtree(t, db, "import", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ExitCommandError, res.code)

	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("values:\n  - name: x\n    type: dword\n    data: text\n"), 0o600))
	res = regtree(t, db, "import", file)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "integer data expected")
}

func TestMemoryBackend(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), []string{"--backend", "memory", "count"}, nil, &out, &errOut)
	require.Equal(t, ExitSuccess, code, errOut.String())
	assert.Equal(t, "values: 0\nsubkeys: 0\n", out.String())
}
