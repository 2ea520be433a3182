package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// The most portable option; manifests are small, so encoding speed rarely
// matters. Persisted data always records the codec name, so the default can
// change without breaking existing snapshots.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used for new snapshots.
var Default Codec = GoJSON{}
