package settings

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entry is one key with its wire value.
type Entry struct {
	Key   string
	Value string
}

// Decode converts the backend's key/value map into the typed record.
// A boolean key is true only for the JSON boolean true or the string "true";
// anything else, including "1" and "TRUE", decodes to false.
func Decode(raw map[string]any) SystemSettings {
	var s SystemSettings
	for key, value := range raw {
		if value == nil {
			continue
		}
		switch TypeOf(key) {
		case KindBool:
			*s.boolField(key) = Bool(value == true || value == "true")
		case KindInt:
			if n, ok := toInt(value); ok {
				s.SMTPPort = Int(n)
			} else {
				s.setExtra(key, stringify(value))
			}
		default:
			if f := s.stringField(key); f != nil {
				*f = String(stringify(value))
			} else {
				s.setExtra(key, stringify(value))
			}
		}
	}
	return s
}

// Encode flattens every defined key to its wire string. Undefined keys are
// omitted. Known keys come first in declaration order, then extras sorted.
func Encode(s SystemSettings) []Entry {
	keys := s.Keys()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, _ := s.Get(k)
		out = append(out, Entry{Key: k, Value: v})
	}
	return out
}

// ToMap returns the typed values keyed by setting name, suitable for JSON.
func ToMap(s SystemSettings) map[string]any {
	out := make(map[string]any)
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		switch {
		case TypeOf(k) == KindBool:
			out[k] = v == "true"
		case k == SMTPPort && s.SMTPPort != nil:
			out[k] = *s.SMTPPort
		default:
			out[k] = v
		}
	}
	return out
}

func (s SystemSettings) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToMap(s))
}

func (s *SystemSettings) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Decode(raw)
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// GenerateSecret returns 16 random bytes hex-encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
