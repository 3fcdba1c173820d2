package update

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// parseManifest extracts the list of UpdateInfo entries from manifest.json
// defensively: gjson locates the entry array so extra/unknown top-level
// fields never fail parsing, then each entry is strictly decoded with
// encoding/json so a single malformed entry is skipped rather than
// aborting the whole manifest (the same extract-then-decode split used
// for pack `content` columns in the Content Store).
func parseManifest(data []byte) ([]UpdateInfo, error) {
	if !gjson.Valid(string(data)) {
		return nil, fmt.Errorf("manifest is not valid JSON")
	}

	root := gjson.ParseBytes(data)
	entries := root
	if root.IsObject() {
		if updates := root.Get("updates"); updates.Exists() {
			entries = updates
		}
	}
	if !entries.IsArray() {
		return nil, fmt.Errorf("manifest does not contain a list of updates")
	}

	var out []UpdateInfo
	for _, item := range entries.Array() {
		var info UpdateInfo
		if err := json.Unmarshal([]byte(item.Raw), &info); err != nil {
			continue
		}
		if info.Version == "" {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}
