package ledger

import "encoding/json"

// mergeMeta merges extra keys into a base metadata document. Extras win
// on key collisions; an unparsable base is discarded.
func mergeMeta(base json.RawMessage, extra map[string]interface{}) json.RawMessage {
	merged := make(map[string]interface{})
	if len(base) > 0 {
		_ = json.Unmarshal(base, &merged)
	}
	for k, v := range extra {
		merged[k] = v
	}
	out, _ := json.Marshal(merged)
	return out
}
