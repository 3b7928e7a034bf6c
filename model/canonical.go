package model

import (
	"bytes"
	"strconv"

	"github.com/marabu-network/marabu/errors"
	jsoniter "github.com/json-iterator/go"
)

// MaxSafeInteger is the largest integer every peer on the network can represent exactly.
const MaxSafeInteger = 1<<53 - 1

const (
	maxTextLength    = 128
	maxStudentIDs    = 10
	TypeTransaction  = "transaction"
	TypeBlock        = "block"
	signatureHexSize = 128
	pubKeyHexSize    = 64
)

// canonicalJSON sorts object keys and writes no insignificant whitespace. Together with the
// printable ASCII restriction on free text this matches RFC 8785 output for every valid object.
var canonicalJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

type jsonObject map[string]interface{}

func encodeCanonical(v jsonObject) []byte {
	b, err := canonicalJSON.Marshal(v)
	if err != nil {
		// only maps, slices, strings and integers are ever passed in
		panic(err)
	}

	return b
}

type rawObject map[string]jsoniter.RawMessage

func decodeRawObject(b []byte, what string) (rawObject, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, errors.NewInvalidFormatError("%s is not a JSON object", what)
	}

	r := rawObject{}
	if err := canonicalJSON.Unmarshal(b, &r); err != nil {
		return nil, errors.NewInvalidFormatError("%s could not be parsed", what, err)
	}

	return r, nil
}

func (r rawObject) has(key string) bool {
	_, ok := r[key]
	return ok
}

func (r rawObject) isNull(key string) bool {
	v, ok := r[key]
	return ok && bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// onlyKeys rejects any key outside allowed.
func (r rawObject) onlyKeys(what string, allowed ...string) error {
	for key := range r {
		found := false

		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}

		if !found {
			return errors.NewInvalidFormatError("%s has unexpected key %q", what, key)
		}
	}

	return nil
}

func (r rawObject) requireKeys(what string, keys ...string) error {
	for _, key := range keys {
		if !r.has(key) {
			return errors.NewInvalidFormatError("%s is missing key %q", what, key)
		}
	}

	return nil
}

func (r rawObject) string(what, key string) (string, error) {
	var s string

	raw := bytes.TrimSpace(r[key])
	if len(raw) == 0 || raw[0] != '"' {
		return "", errors.NewInvalidFormatError("%s.%s is not a string", what, key)
	}

	if err := canonicalJSON.Unmarshal(raw, &s); err != nil {
		return "", errors.NewInvalidFormatError("%s.%s is not a string", what, key, err)
	}

	return s, nil
}

func (r rawObject) hex(what, key string, n int) (string, error) {
	s, err := r.string(what, key)
	if err != nil {
		return "", err
	}

	if !IsHex(s, n) {
		return "", errors.NewInvalidFormatError("%s.%s must be %d lowercase hex characters", what, key, n)
	}

	return s, nil
}

func (r rawObject) text(what, key string) (string, error) {
	s, err := r.string(what, key)
	if err != nil {
		return "", err
	}

	if !IsPrintableASCII(s, maxTextLength) {
		return "", errors.NewInvalidFormatError("%s.%s must be at most %d printable ASCII characters", what, key, maxTextLength)
	}

	return s, nil
}

func (r rawObject) uint(what, key string) (uint64, error) {
	return parseUint(r[key], what+"."+key)
}

func (r rawObject) array(what, key string) ([]jsoniter.RawMessage, error) {
	raw := bytes.TrimSpace(r[key])
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errors.NewInvalidFormatError("%s.%s is not an array", what, key)
	}

	var items []jsoniter.RawMessage
	if err := canonicalJSON.Unmarshal(raw, &items); err != nil {
		return nil, errors.NewInvalidFormatError("%s.%s is not an array", what, key, err)
	}

	return items, nil
}

// parseUint accepts plain decimal integers in [0, MaxSafeInteger].
func parseUint(raw []byte, what string) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || len(raw) > 16 || (len(raw) > 1 && raw[0] == '0') {
		return 0, errors.NewInvalidFormatError("%s is not a non-negative integer", what)
	}

	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, errors.NewInvalidFormatError("%s is not a non-negative integer", what)
		}
	}

	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || v > MaxSafeInteger {
		return 0, errors.NewInvalidFormatError("%s is out of range", what)
	}

	return v, nil
}

// IsPrintableASCII reports whether s has at most max characters, all in 0x20..0x7e.
func IsPrintableASCII(s string, max int) bool {
	if len(s) > max {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}

	return true
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
