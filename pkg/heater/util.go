package heater

import (
	"encoding/json"
	"os"

	"github.com/catherinevee/prodflow/pkg/prminer"
)

// isCI reports whether the process is running under a CI runner, the same
// env-var-presence check the teacher's config loader uses for its
// override knobs (internal/infrastructure/config's Getenv-gated fields).
func isCI() bool {
	return os.Getenv("CI") != ""
}

// payload is the durable shape stored in a PRFactsRow: the derived
// timeline plus the diff footprint, everything pkg/metrics' PR calculators
// need to reconstruct a PRSample without re-mining.
type payload struct {
	Times prminer.Timestamps
	Size  prminer.Size
}

func marshalTimestamps(b prminer.PRBundle) ([]byte, error) {
	return json.Marshal(payload{Times: b.Times, Size: b.Size})
}

func unmarshalPayload(data []byte) (prminer.Timestamps, prminer.Size, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return prminer.Timestamps{}, prminer.Size{}, err
	}
	return p.Times, p.Size, nil
}
