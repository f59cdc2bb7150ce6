package timetable

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadPlatforms reads persisted platform fallbacks keyed "<serviceId>/<stopId>".
// The file is a read-only warm cache, live rail ingest overrides its entries.
// A missing file yields an empty map.
func LoadPlatforms(path string) (map[string]string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading platforms file %s: %w", path, err)
	}
	platforms := make(map[string]string)
	if err = json.Unmarshal(contents, &platforms); err != nil {
		return nil, fmt.Errorf("parsing platforms file %s: %w", path, err)
	}
	return platforms, nil
}
