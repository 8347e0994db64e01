package batch

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when a collaborator response contains no valid JSON
// object or array. Callers treat it as a soft failure.
var ErrNoJSON = eris.New("batch: no valid JSON in response")

// ExtractJSON returns the first syntactically valid JSON object or array
// embedded in text. Collaborators frequently wrap their payload in prose or
// markdown fences; everything around the first valid value is ignored.
func ExtractJSON(text string) (string, error) {
	m := newMatcher(text)
	for start := 0; start < len(text); start++ {
		if text[start] != '{' && text[start] != '[' {
			continue
		}
		end, ok := m.close(start)
		if !ok {
			continue
		}
		candidate := text[start : end+1]
		if gjson.Valid(candidate) {
			return candidate, nil
		}
	}
	return "", ErrNoJSON
}

// DecodeJSON extracts the first JSON value from text and unmarshals it into v.
// A fragment that is valid JSON but does not fit v is reported as ErrNoJSON.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return eris.Wrap(ErrNoJSON, err.Error())
	}
	return nil
}

// DecodeJSONArray is DecodeJSON for payloads that should be a list. When the
// first JSON value is an object, the first array-valued field inside it is
// used instead, which covers responses like {"results": [...]}.
func DecodeJSONArray[T any](text string) ([]T, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	res := gjson.Parse(raw)
	if res.IsObject() {
		var inner string
		res.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				inner = value.Raw
				return false
			}
			return true
		})
		if inner == "" {
			return nil, ErrNoJSON
		}
		raw = inner
	}

	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(ErrNoJSON, err.Error())
	}
	return out, nil
}

// matcher pairs brackets, skipping over string literals. It only balances
// brackets; validity is checked separately.
//
// A scan from one opening bracket also settles every bracket it opens on the
// way, since a fresh scan from any of them would see the same characters in
// the same string state. Each bracket is therefore scanned at most once.
type matcher struct {
	text string
	// ends holds end+1 for a matched opening bracket, -1 for one that never
	// closes, and 0 for one not scanned yet.
	ends []int
}

func newMatcher(text string) *matcher {
	return &matcher{text: text, ends: make([]int, len(text))}
}

// close returns the index of the bracket closing the one at start.
func (m *matcher) close(start int) (int, bool) {
	if m.ends[start] == 0 {
		m.scan(start)
	}
	if end := m.ends[start]; end > 0 {
		return end - 1, true
	}
	return 0, false
}

func (m *matcher) scan(start int) {
	var open []int
	inString := false
	escaped := false
	for i := start; i < len(m.text); i++ {
		c := m.text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			open = append(open, i)
		case '}', ']':
			p := open[len(open)-1]
			open = open[:len(open)-1]
			m.ends[p] = i + 1
			if len(open) == 0 {
				return
			}
		}
	}
	for _, p := range open {
		m.ends[p] = -1
	}
}
