package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "id,customer_message,name,contact_info\n" +
		"1,Where is my order?,Alice,alice@example.com\n" +
		"2,,Bob,\n" +
		"3,\"Refund, please\",,555-1234\n"

	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"id", "customer_message", "name", "contact_info"}, ds.Columns)

	first := ds.Records[0]
	require.NotNil(t, first.CustomerMessage)
	assert.Equal(t, "Where is my order?", *first.CustomerMessage)
	assert.Equal(t, "1", first.Extra["id"])

	assert.Nil(t, ds.Records[1].CustomerMessage)
	assert.Nil(t, ds.Records[1].ContactInfo)
	assert.Nil(t, ds.Records[2].Name)
	assert.Equal(t, "Refund, please", *ds.Records[2].CustomerMessage)
}

func TestReadCSVMalformed(t *testing.T) {
	tests := []struct {
		name        string
		csv         string
		wantMissing []string
	}{
		{"no header", "", RequiredColumns},
		{"missing contact", "customer_message,name\nhi,Al\n", []string{ColumnContact}},
		{"missing all", "id\n1\n", RequiredColumns},
		{"ragged rows", "customer_message,name,contact_info\nhi,Al\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.csv))
			require.Error(t, err)

			var malformed *MalformedInputError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.wantMissing, malformed.Missing)
		})
	}
}

func TestSetFlagsRejectsLengthMismatch(t *testing.T) {
	ds := New(RequiredColumns, make([]Record, 3))

	err := ds.SetFlags("duplicate_flag", []Flag{Bool(true)})
	assert.Error(t, err)
	assert.False(t, ds.Has("duplicate_flag"))

	require.NoError(t, ds.SetFlags("duplicate_flag", []Flag{Bool(true), Bool(false), Bool(true)}))
	assert.True(t, ds.Has("duplicate_flag"))
	assert.Equal(t, 2, ds.CountTrue("duplicate_flag"))
	assert.Zero(t, ds.CountTrue("missing"))
}

func TestFlagNamesKeepInsertionOrder(t *testing.T) {
	ds := New(RequiredColumns, make([]Record, 1))
	require.NoError(t, ds.SetFlags("b", []Flag{Null()}))
	require.NoError(t, ds.SetFlags("a", []Flag{Null()}))
	require.NoError(t, ds.SetFlags("b", []Flag{Bool(true)}))

	assert.Equal(t, []string{"b", "a"}, ds.FlagNames())
}

func TestFlagRendering(t *testing.T) {
	assert.Equal(t, "True", Bool(true).String())
	assert.Equal(t, "False", Bool(false).String())
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "female", Label("female").String())

	assert.True(t, Label("unknown").Is("unknown"))
	assert.False(t, Bool(true).Is("True"))
	assert.False(t, Null().IsFalse())

	raw, err := json.Marshal([]Flag{Bool(true), Null(), Label("male")})
	require.NoError(t, err)
	assert.JSONEq(t, `[true, null, "male"]`, string(raw))
}

func TestWriteCSV(t *testing.T) {
	input := "customer_message,name,contact_info,channel\n" +
		"hello,Al,,email\n" +
		",Bo,x@y.io,chat\n"
	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.NoError(t, ds.SetFlags("missing_message", []Flag{Bool(false), Bool(true)}))
	require.NoError(t, ds.SetFlags("relevance_flag", []Flag{Bool(true), Null()}))
	require.NoError(t, ds.SetFlags("gender_bias_flag", []Flag{Label("male"), Label("unknown")}))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))

	want := "customer_message,name,contact_info,channel,missing_message,relevance_flag,gender_bias_flag\n" +
		"hello,Al,,email,False,True,male\n" +
		",Bo,x@y.io,chat,True,,unknown\n"
	assert.Equal(t, want, buf.String())
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("customer_message,name,contact_info\nhi,Al,\n"), 0o644))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
