package validation_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const now = "2026-01-02T03:04:05.000000Z"

func upper(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return nil, types.Validationf("expected string type")
	}
	return strings.ToUpper(s), nil
}

func TestStringLength(t *testing.T) {
	check := validation.StringLength(2, 5)

	v, err := check("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = check("a")
	assert.EqualError(t, err, "400: length should be between 2 and 5 characters [type: validation]")

	_, err = check("abcdef")
	assert.True(t, types.IsValidation(err))

	_, err = check(42)
	ce, ok := types.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, "expected string type", ce.Message)

	// characters, not bytes
	_, err = check("äöü")
	assert.NoError(t, err)
}

func TestDictionary(t *testing.T) {
	mandatory := []validation.Field{{Name: "name", Validate: upper}, {Name: "kind"}}
	optional := []validation.Field{{Name: "custom_fields", Validate: validation.Map}}

	t.Run("missing keys in declaration order", func(t *testing.T) {
		_, err := validation.Dictionary(map[string]interface{}{}, mandatory, optional, nil, now)
		ce, ok := types.AsCustomError(err)
		require.True(t, ok)
		assert.Equal(t, "missing mandatory key(s): name, kind", ce.Message)
	})

	t.Run("invalid keys sorted", func(t *testing.T) {
		data := map[string]interface{}{"name": "x", "kind": "y", "zeta": 1, "alpha": 2}
		_, err := validation.Dictionary(data, mandatory, optional, nil, now)
		ce, ok := types.AsCustomError(err)
		require.True(t, ok)
		assert.Equal(t, "invalid key(s) in request body: alpha, zeta", ce.Message)
	})

	t.Run("validator failure is prefixed", func(t *testing.T) {
		data := map[string]interface{}{"name": "x", "kind": "y", "custom_fields": "nope"}
		_, err := validation.Dictionary(data, mandatory, optional, nil, now)
		ce, ok := types.AsCustomError(err)
		require.True(t, ok)
		assert.Equal(t, "key 'custom_fields': expected a dictionary", ce.Message)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		fields := []validation.Field{{Name: "a", Validate: func(interface{}) (interface{}, error) { return nil, boom }}}
		_, err := validation.Dictionary(map[string]interface{}{"a": 1}, fields, nil, nil, now)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("create stamps both timestamps and drops meta", func(t *testing.T) {
		data := map[string]interface{}{
			"name": "foo", "kind": "k", "id": 99, "_links": map[string]interface{}{}, "_created": "client",
		}
		res, err := validation.Dictionary(data, mandatory, optional, nil, now)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"name": "FOO", "kind": "k", "_created": now, "_updated": now,
		}, res)
	})

	t.Run("update carries _created forward", func(t *testing.T) {
		existing := map[string]interface{}{"name": "FOO", "kind": "k", "_created": "2020-01-01T00:00:00.000000Z"}
		data := map[string]interface{}{"name": "bar", "kind": "k"}
		res, err := validation.Dictionary(data, mandatory, optional, existing, now)
		require.NoError(t, err)
		assert.Equal(t, "2020-01-01T00:00:00.000000Z", res["_created"])
		assert.Equal(t, now, res["_updated"])
	})

	t.Run("update of entity without _created does not invent one", func(t *testing.T) {
		existing := map[string]interface{}{"name": "FOO", "kind": "k"}
		res, err := validation.Dictionary(map[string]interface{}{"name": "a", "kind": "b"}, mandatory, optional, existing, now)
		require.NoError(t, err)
		_, ok := res["_created"]
		assert.False(t, ok)
		assert.Equal(t, now, res["_updated"])
	})
}

func TestEmail(t *testing.T) {
	e, err := validation.Email("some@user.com")
	require.NoError(t, err)
	assert.Equal(t, "some@user.com", e)

	_, err = validation.Email("not-an-email")
	assert.True(t, types.IsValidation(err))

	_, err = validation.Email(12)
	assert.True(t, types.IsValidation(err))
}
