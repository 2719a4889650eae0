package storage

import (
	"encoding/json"
	"reflect"
)

// encodeJSON stores optional structured values as a JSON column. Nil values
// become an empty string.
func encodeJSON(data any) (string, error) {
	if data == nil {
		return "", nil
	}
	if v := reflect.ValueOf(data); v.Kind() == reflect.Pointer && v.IsNil() {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeJSON reads a JSON column written by encodeJSON
func decodeJSON(s string, data any) error {
	return json.Unmarshal([]byte(s), data)
}
