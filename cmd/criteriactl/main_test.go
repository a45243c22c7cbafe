package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompile(t *testing.T) {
	out, err := runCmd(t, "compile", "-e", "category", "sortOrder.greaterThan=1&productId.in=1,2")
	require.NoError(t, err)

	assert.Contains(t, out, "entity:      Category")
	assert.Contains(t, out, "sortOrder > 1")
	assert.Contains(t, out, "distinct:    true")
	assert.Contains(t, out, "relations:   productId (many_to_many)")
	assert.Contains(t, out, "cel:         ")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown entity", []string{"compile", "-e", "invoice"}, "NOT_FOUND"},
		{"unknown field", []string{"compile", "-e", "category", "colour.equals=red"}, "UNKNOWN_FIELD"},
		{"bad query string", []string{"compile", "-e", "category", "id.equals=%zz"}, "invalid query string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompile_Schema(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(schema, []byte(`
entities:
  - name: book
    table: book
    primaryKey: id
    fields:
      - {name: id, type: long, column: id}
      - {name: title, type: string, column: title}
`), 0o600))

	out, err := runCmd(t, "compile", "--schema", schema, "-e", "book", "--fold-case", "title.contains=go")
	require.NoError(t, err)
	assert.Contains(t, out, "entity:      book")
	assert.Contains(t, out, "upperAscii")
}

func TestSQL(t *testing.T) {
	out, err := runCmd(t, "sql", "--dialect", "postgres", "-e", "category", "parentId.equals=1&sort=id,desc&size=5")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SELECT category.id AS id"), lines[0])
	assert.Contains(t, lines[0], "LEFT JOIN category parent ON parent.id = category.parent_id")
	assert.Contains(t, lines[0], "WHERE parent.id = $1 ORDER BY id DESC NULLS LAST LIMIT 5")
	assert.Equal(t, "  args: [1]", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "SELECT COUNT(*) FROM category"), lines[2])
}

func TestInitFindCount_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "shop.db")

	out, err := runCmd(t, "init", "--driver", "sqlite", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "initialized sqlite\n", out)

	out, err = runCmd(t, "count", "--driver", "sqlite", "--dsn", dsn, "-e", "address", "country.notIn=US")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = runCmd(t, "find", "--driver", "sqlite", "--dsn", dsn, "-e", "address", "country.notIn=US&sort=city&offset=1&limit=2")
	require.NoError(t, err)

	var page struct {
		Items      []map[string]any `json:"items"`
		TotalCount int64            `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, int64(3), page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "London", page.Items[0]["city"])
	assert.Equal(t, "Paris", page.Items[1]["city"])
}

func TestCount_Memory(t *testing.T) {
	out, err := runCmd(t, "count", "--driver", "memory", "-e", "customer", "addressId.specified=false")
	require.NoError(t, err)
	assert.Regexp(t, `^\d+\n$`, out)

	_, err = runCmd(t, "init", "--driver", "memory")
	assert.Error(t, err)
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		want    int32
		wantErr bool
	}{
		{name: "default", n: 10, want: 10},
		{name: "max", n: math.MaxInt32, want: math.MaxInt32},
		{name: "zero", n: 0, wantErr: true},
		{name: "negative", n: -4, wantErr: true},
		{name: "overflows int32", n: math.MaxInt32 + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := poolSize(tt.n)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "PG_MAX_CONNS")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
