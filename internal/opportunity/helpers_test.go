package opportunity

import "encoding/json"

func jsonUnmarshal(raw string, out interface{}) error {
	return json.Unmarshal([]byte(raw), out)
}
