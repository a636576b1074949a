package ratelimit

import "encoding/json"

// decode accepts the window as a JSON array or as a JSON object of
// timestamps, which is how sparse arrays come back from older writers.
func decode(raw string) ([]int64, error) {
	var list []int64
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}
	var obj map[string]int64
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(obj))
	for _, ts := range obj {
		out = append(out, ts)
	}
	return out, nil
}
