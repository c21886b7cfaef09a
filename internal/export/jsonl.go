package export

import (
	"bufio"
	"encoding/json"
	"io"

	"ava/internal/core"
)

// WriteJSONL writes one JSON-encoded TrainingDatapoint per line. Per the
// testable property in spec.md §8 ("exporting a datapoint to JSONL then
// parsing each line yields the original record fields"), each line is the
// datapoint's full JSON serialization — no field projection.
func WriteJSONL(w io.Writer, datapoints []core.TrainingDatapoint) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, dp := range datapoints {
		if err := enc.Encode(dp); err != nil {
			return writeErr("export.WriteJSONL", err)
		}
	}
	return writeErr("export.WriteJSONL.Flush", bw.Flush())
}
