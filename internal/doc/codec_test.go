package doc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SortedCompact(t *testing.T) {
	data, err := Encode(Document{"b": 2, "a": "x<y", "c": []any{true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x<y","b":2,"c":[true,null]}`, string(data))
}

func TestEncode_Nil(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestEncode_NormalizesStrings(t *testing.T) {
	data, err := Encode(Document{"name": "café"})
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"café\"}", string(data))
}

func TestEncode_Unsupported(t *testing.T) {
	_, err := Encode(Document{"ch": make(chan int)})
	require.Error(t, err)
}

func TestDecode_Numbers(t *testing.T) {
	d, err := Decode([]byte(`{"score":5,"ratio":0.5,"nested":{"n":-3},"list":[1,2.5]}`))
	require.NoError(t, err)

	assert.Equal(t, int64(5), d["score"])
	assert.Equal(t, 0.5, d["ratio"])
	assert.Equal(t, map[string]any{"n": int64(-3)}, d["nested"])
	assert.Equal(t, []any{int64(1), 2.5}, d["list"])
}

func TestDecode_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`{`,
		`null`,
		`[1,2]`,
		`"text"`,
		`{"a":1} {"b":2}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Decode([]byte(in))
			require.Error(t, err)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
		})
	}
}

func TestNormalize(t *testing.T) {
	d, err := Normalize(Document{"score": 5, "tags": []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, Document{"score": int64(5), "tags": []any{"a"}}, d)
}
