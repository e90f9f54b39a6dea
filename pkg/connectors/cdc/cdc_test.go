package cdc

import (
	"reflect"
	"testing"

	"github.com/go-mysql-org/go-mysql/schema"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"orders", []string{"orders"}},
		{"orders,users", []string{"orders", "users"}},
		{" orders , users ", []string{"orders", "users"}},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("splitCSV(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestRowToMap(t *testing.T) {
	columns := []schema.TableColumn{{Name: "id"}, {Name: "name"}, {Name: "blob_col"}}
	row := []any{int64(1), "alice", []byte("raw")}
	got := rowToMap(columns, row)
	want := map[string]any{"id": int64(1), "name": "alice", "blob_col": "raw"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rowToMap = %#v, want %#v", got, want)
	}
}

func TestRowToMapShortRow(t *testing.T) {
	columns := []schema.TableColumn{{Name: "id"}, {Name: "name"}}
	row := []any{int64(1)}
	got := rowToMap(columns, row)
	want := map[string]any{"id": int64(1)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rowToMap = %#v, want %#v", got, want)
	}
}

func TestNewSourceRequiresHostAndUsername(t *testing.T) {
	if _, err := NewSource(nil, "c1", nil, map[string]string{}); err == nil {
		t.Fatal("expected error when host/username are missing")
	}
}
