package catalog

import (
	_ "embed"
	"encoding/json"
)

//go:embed samples.json
var samplesJSON []byte

// SampleObjects returns the bundled sample catalogue shown when no remote
// store is configured or reachable.
func SampleObjects() []Object {
	var objects []Object
	if err := json.Unmarshal(samplesJSON, &objects); err != nil {
		return nil
	}
	for i := range objects {
		objects[i].Images = NormalizePrimary(objects[i].Images)
	}
	return objects
}
