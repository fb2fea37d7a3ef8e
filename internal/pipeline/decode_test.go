package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `[{"name":"x"}]`, `[{"name":"x"}]`},
		{"plain fence", "```\n[1,2]\n```", "[1,2]"},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"leading whitespace", "  ```json\n[]\n```  ", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestDecodeEntityPayloadVariants(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		got, err := decodeEntityPayload(`[{"name":"A"},{"name":"B"}]`)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Name)
	})

	t.Run("wrapped object", func(t *testing.T) {
		got, err := decodeEntityPayload(`{"entities":[{"name":"A","priority_score":0.9}]}`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 0.9, got[0].score())
	})

	t.Run("single object", func(t *testing.T) {
		got, err := decodeEntityPayload(`{"name":"Solo","description":"d"}`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Solo", got[0].Name)
	})

	t.Run("fenced array", func(t *testing.T) {
		got, err := decodeEntityPayload("```json\n[{\"name\":\"A\"}]\n```")
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("empty array is valid", func(t *testing.T) {
		got, err := decodeEntityPayload(`[]`)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, err := decodeEntityPayload(`here are your entities!`)
		assert.Error(t, err)
	})
}

func TestRawEntityScoreDefault(t *testing.T) {
	missing, err := decodeEntityPayload(`[{"name":"A"}]`)
	require.NoError(t, err)
	assert.Equal(t, 0.5, missing[0].score(), "missing score defaults to 0.5")

	zero, err := decodeEntityPayload(`[{"name":"A","priority_score":0}]`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero[0].score(), "an explicit zero stays zero")

	high, err := decodeEntityPayload(`[{"name":"A","priority_score":3.5}]`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, high[0].score(), "scores clamp to [0,1]")
}

func TestDecodePhrasePayloadVariants(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		got, err := decodePhrasePayload(`[{"query":"a","priority":"high"},{"query":"b"}]`)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].Phrase)
		assert.Equal(t, PriorityHigh, got[0].Priority)
	})

	t.Run("wrapped object", func(t *testing.T) {
		got, err := decodePhrasePayload(`{"queries":[{"query":"a"}]}`)
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("single object", func(t *testing.T) {
		got, err := decodePhrasePayload(`{"query":"only one"}`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "only one", got[0].Phrase)
	})

	t.Run("prose fails", func(t *testing.T) {
		_, err := decodePhrasePayload(`I suggest searching for databases`)
		assert.Error(t, err)
	})
}

func TestDecodeScores(t *testing.T) {
	got, err := decodeScores(`{"credibility_score":0.82,"relevance_score":0.4}`)
	require.NoError(t, err)
	assert.Equal(t, 0.82, got.Credibility)
	assert.Equal(t, 0.4, got.Relevance)

	clamped, err := decodeScores(`{"credibility_score":1.7,"relevance_score":-0.2}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, clamped.Credibility)
	assert.Equal(t, 0.0, clamped.Relevance)

	_, err = decodeScores(`not json`)
	assert.Error(t, err)
}
