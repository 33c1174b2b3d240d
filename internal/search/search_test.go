package search_test

import (
	"net/url"
	"testing"

	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketSchema = search.Schema{
	"aportio_id":       search.String,
	"customer_id":      search.Int,
	"status":           search.String,
	"classification.*": search.Dict,
}

var userSchema = search.Schema{
	"email":           search.List,
	"custom_fields.*": search.Dict,
	"name":            search.String,
}

var tickets = []map[string]interface{}{
	{"aportio_id": "1111", "customer_id": int64(1), "status": "OPEN", "classification": map[string]interface{}{"l1": "incident", "l2": "hardware"}},
	{"aportio_id": "2222", "customer_id": int64(2), "status": "CLOSED", "classification": map[string]interface{}{"l1": "service-request"}},
	{"aportio_id": "3333", "customer_id": int64(1), "status": "CLOSED", "classification": map[string]interface{}{"l1": "incident"}},
}

func matching(t *testing.T, schema search.Schema, query string, docs []map[string]interface{}) []int {
	t.Helper()
	params, err := url.ParseQuery(query)
	require.NoError(t, err)
	filter, err := search.Build(schema, params)
	require.NoError(t, err)
	var idx []int
	for i, d := range docs {
		if filter == nil || filter.Match(d) {
			idx = append(idx, i)
		}
	}
	return idx
}

func TestBuildMatches(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []int
	}{
		{name: "no params", query: "", want: []int{0, 1, 2}},
		{name: "int key", query: "customer_id=2", want: []int{1}},
		{name: "or within key", query: "aportio_id=1111&aportio_id=2222", want: []int{0, 1}},
		{name: "and across keys", query: "customer_id=1&status=CLOSED", want: []int{2}},
		{name: "hierarchical", query: "classification.l1=incident", want: []int{0, 2}},
		{name: "deeper hierarchical", query: "classification.l2=hardware", want: []int{0}},
		{name: "url decoded", query: "classification.l1=service%2Drequest", want: []int{1}},
		{name: "no hit", query: "status=PENDING", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matching(t, ticketSchema, tt.query, tickets))
		})
	}
}

func TestBuildListAny(t *testing.T) {
	users := []map[string]interface{}{
		{"email": []interface{}{"some@user.com"}},
		{"email": []interface{}{"another@user.com", "with-multiple@emails.com"}, "custom_fields": map[string]interface{}{"address": map[string]interface{}{"city": "Littleville"}}},
	}
	assert.Equal(t, []int{1}, matching(t, userSchema, "email=with-multiple%40emails.com", users))
	assert.Equal(t, []int{0, 1}, matching(t, userSchema, "email=some@user.com&email=another@user.com", users))
	assert.Equal(t, []int{1}, matching(t, userSchema, "custom_fields.address.city=Littleville", users))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema search.Schema
		query  string
		want   string
	}{
		{name: "no schema", schema: nil, query: "a=1", want: "this resource does not support queries"},
		{name: "unknown key", schema: ticketSchema, query: "foo=1", want: "invalid search key: foo"},
		{name: "unknown dotted key", schema: ticketSchema, query: "custom_fields.x=1", want: "invalid search key: custom_fields.x"},
		{name: "dotted key on non-dict", schema: search.Schema{"name.*": search.String}, query: "name.first=x", want: "wrong type for hierarchical search parameters: str"},
		{name: "bad int", schema: ticketSchema, query: "customer_id=abc", want: "invalid integer value 'abc' for search key: customer_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			_, err = search.Build(tt.schema, params)
			ce, ok := types.AsCustomError(err)
			require.True(t, ok)
			assert.Equal(t, types.TypeValidation, ce.Type)
			assert.Equal(t, tt.want, ce.Message)
		})
	}
}

func TestBuildNoSchemaNoParams(t *testing.T) {
	f, err := search.Build(nil, url.Values{})
	require.NoError(t, err)
	assert.Nil(t, f)
}
