package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeMeta(t *testing.T) {
	t.Run("merges into existing document", func(t *testing.T) {
		out := mergeMeta(json.RawMessage(`{"a":1,"b":"x"}`), map[string]interface{}{
			"b": "y",
			"c": int64(3),
		})

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Equal(t, float64(1), got["a"])
		assert.Equal(t, "y", got["b"], "extras win on collision")
		assert.Equal(t, float64(3), got["c"])
	})

	t.Run("nil base", func(t *testing.T) {
		out := mergeMeta(nil, map[string]interface{}{"k": "v"})
		assert.JSONEq(t, `{"k":"v"}`, string(out))
	})

	t.Run("unparsable base is discarded", func(t *testing.T) {
		out := mergeMeta(json.RawMessage(`not json`), map[string]interface{}{"k": "v"})
		assert.JSONEq(t, `{"k":"v"}`, string(out))
	})
}
