package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Cells int    `json:"cells"`
}

func TestCodecs(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			in := payload{Name: "frag-000001", Cells: 42}

			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out payload
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)

			// JSON codecs are wire compatible with each other.
			var cross payload
			require.NoError(t, (JSON{}).Unmarshal(data, &cross))
			assert.Equal(t, in, cross)
		})
	}
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestMustMarshal(t *testing.T) {
	data := MustMarshal(nil, payload{Name: "m"})
	assert.Contains(t, string(data), `"name":"m"`)

	assert.Panics(t, func() {
		MustMarshal(JSON{}, make(chan int))
	})
}
