package layout

import (
	"encoding/json"
	"os"
)

// WriteDebugJSON 将放置计划输出为 JSON，便于排查槽位与分页。
func WriteDebugJSON(plan *Plan, path string) error {
	if plan == nil {
		return nil
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
