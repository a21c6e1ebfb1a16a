package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Sign returns the hex HMAC-SHA256 of fields rendered as sorted key=value
// pairs joined by '&'.
func Sign(fields map[string]string, checksumKey string) string {
	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(canonical(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignData signs a raw JSON object the way the gateway signs webhook data.
func SignData(data []byte, checksumKey string) (string, error) {
	fields, err := flatten(data)
	if err != nil {
		return "", err
	}
	return Sign(fields, checksumKey), nil
}

// VerifyData checks signature against the raw JSON data object in constant time.
func VerifyData(data []byte, signature, checksumKey string) bool {
	sig := strings.TrimSpace(signature)
	key := strings.TrimSpace(checksumKey)
	if sig == "" || key == "" {
		return false
	}
	expected, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	fields, err := flatten(data)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(canonical(fields)))
	return hmac.Equal(mac.Sum(nil), expected)
}

func canonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// flatten renders the top-level values of a JSON object as strings. Null
// becomes empty, numbers keep their literal form, nested values are re-encoded.
func flatten(data []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode signed data: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("signed data is not an object")
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			if val == "null" || val == "undefined" {
				fields[k] = ""
			} else {
				fields[k] = val
			}
		case json.Number:
			fields[k] = val.String()
		case bool:
			if val {
				fields[k] = "true"
			} else {
				fields[k] = "false"
			}
		default:
			enc, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			fields[k] = string(enc)
		}
	}
	return fields, nil
}
