package collection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdGenerator(t *testing.T) {
	tests := []struct {
		name     string
		records  []Record
		expected int
	}{
		{"coleção vazia", nil, 1},
		{"ids numéricos", animalSpecies(), 6},
		{"ids fora de ordem", []Record{{"id": 9}, {"id": 2}}, 10},
		{"ids float e json.Number", []Record{{"id": 3.0}, {"id": json.Number("7")}}, 8},
		{"ids string são ignorados", []Record{{"id": "abc"}, {"id": "99"}}, 1},
		{"mistura", []Record{{"id": "abc"}, {"id": int64(4)}}, 5},
		{"sem campo de identidade", []Record{{"name": "x"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewIdGenerator(tt.records, "id")
			assert.Equal(t, tt.expected, g.Next())
			assert.Equal(t, tt.expected+1, g.Next())
		})
	}
}

func TestIdGenerator_Reset(t *testing.T) {
	g := NewIdGenerator(animalSpecies(), "id")
	assert.Equal(t, 6, g.Peek())

	g.Reset()
	assert.Equal(t, 1, g.Next())
	assert.Equal(t, 2, g.Next())
}

func TestParseIdentity(t *testing.T) {
	v, err := ParseIdentity("3", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = ParseIdentity("3.5", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = ParseIdentity("abc", "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = ParseIdentity("true", false)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = ParseIdentity("abc", 1)
	assert.ErrorIs(t, err, ErrIdentityType)

	_, err = ParseIdentity("3.0", 1)
	assert.ErrorIs(t, err, ErrIdentityType)

	_, err = ParseIdentity("-1", uint(1))
	assert.ErrorIs(t, err, ErrIdentityType)

	_, err = ParseIdentity("1", []int{1})
	assert.ErrorIs(t, err, ErrIdentityType)
}

func TestIdentityMatches(t *testing.T) {
	assert.True(t, identityMatches(3, "3"))
	assert.True(t, identityMatches(3, 3.0))
	assert.True(t, identityMatches(int64(3), 3))
	assert.True(t, identityMatches("3", 3))
	assert.True(t, identityMatches("abc", "abc"))

	assert.False(t, identityMatches(3, "3abc"))
	assert.False(t, identityMatches(3, "4"))
	assert.False(t, identityMatches(nil, nil))
	assert.False(t, identityMatches(true, 1))
}
