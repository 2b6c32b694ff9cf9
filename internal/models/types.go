package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TextFields lists the answer text keys in lookup priority order. A record
// normally carries only one of them; a language-code key is tried first by
// callers that know the display language.
var TextFields = []string{"en", "english", "body", "answer", "content", "text", "answer_text"}

// DateFields lists the date-like keys in lookup priority order. At most one is
// expected to be populated and its format is not guaranteed.
var DateFields = []string{"created_at", "scan_date", "answer_date", "createdAt", "date", "timestamp"}

// AnswerPoint is one submitted answer as returned by the backend's /answers
// endpoint. It is never mutated after decoding.
type AnswerPoint struct {
	ID         string
	QuestionID string
	X          float64 // NaN when the backend omitted x_axis_value
	Y          float64 // NaN when the backend omitted y_axis_value
	Texts      map[string]string
	Dates      map[string]any
}

// Text returns the first populated text field, preferring lang.
func (a AnswerPoint) Text(lang string) (string, bool) {
	if lang != "" {
		if v := strings.TrimSpace(a.Texts[lang]); v != "" {
			return v, true
		}
	}
	for _, k := range TextFields {
		if v := strings.TrimSpace(a.Texts[k]); v != "" {
			return v, true
		}
	}
	// any remaining language-code key, in stable order
	best := ""
	for k, v := range a.Texts {
		if strings.TrimSpace(v) == "" || !isLangKey(k) {
			continue
		}
		if best == "" || k < best {
			best = k
		}
	}
	if best != "" {
		return strings.TrimSpace(a.Texts[best]), true
	}
	return "", false
}

// Date returns the first populated date field in DateFields order.
func (a AnswerPoint) Date() (any, bool) {
	for _, k := range DateFields {
		v, ok := a.Dates[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

var structuralKeys = map[string]struct{}{
	"answer_id": {}, "id": {}, "question_id": {}, "x_axis_value": {}, "y_axis_value": {},
}

func isLangKey(k string) bool {
	if _, skip := structuralKeys[k]; skip {
		return false
	}
	if len(k) == 2 {
		return k[0] >= 'a' && k[0] <= 'z' && k[1] >= 'a' && k[1] <= 'z'
	}
	// pt-br, zh-cn style
	if len(k) == 5 && k[2] == '-' {
		return isLangKey(k[:2])
	}
	return false
}

func (a *AnswerPoint) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := AnswerPoint{X: math.NaN(), Y: math.NaN(), Texts: map[string]string{}, Dates: map[string]any{}}
	if v, ok := raw["answer_id"]; ok {
		out.ID = FlexString(v)
	}
	if out.ID == "" {
		if v, ok := raw["id"]; ok {
			out.ID = FlexString(v)
		}
	}
	if v, ok := raw["question_id"]; ok {
		out.QuestionID = FlexString(v)
	}
	if v, ok := raw["x_axis_value"]; ok {
		out.X = FlexFloat(v)
	}
	if v, ok := raw["y_axis_value"]; ok {
		out.Y = FlexFloat(v)
	}
	for k, v := range raw {
		if _, skip := structuralKeys[k]; skip {
			continue
		}
		if isDateKey(k) {
			var d any
			if err := json.Unmarshal(v, &d); err == nil && d != nil {
				out.Dates[k] = d
			}
			continue
		}
		if isTextKey(k) || isLangKey(k) {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out.Texts[k] = s
			}
		}
	}
	*a = out
	return nil
}

// MarshalJSON writes the backend shape back out so snapshots can be cached and
// re-read. Missing coordinates are written as null.
func (a AnswerPoint) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4+len(a.Texts)+len(a.Dates))
	m["answer_id"] = a.ID
	m["question_id"] = a.QuestionID
	m["x_axis_value"] = nullableFloat(a.X)
	m["y_axis_value"] = nullableFloat(a.Y)
	for k, v := range a.Texts {
		m[k] = v
	}
	for k, v := range a.Dates {
		m[k] = v
	}
	return json.Marshal(m)
}

func nullableFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func isTextKey(k string) bool {
	for _, f := range TextFields {
		if f == k {
			return true
		}
	}
	return false
}

func isDateKey(k string) bool {
	for _, f := range DateFields {
		if f == k {
			return true
		}
	}
	return false
}

// FlexString decodes an identifier that may arrive as a JSON string or number.
func FlexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

// FlexFloat decodes a coordinate that may be a number, a numeric string or
// null. Anything unusable becomes NaN.
func FlexFloat(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return math.NaN()
}

// Question is an entry of GET /questions.
type Question struct {
	ID       string            `json:"question_id"`
	Color    string            `json:"color"`
	TextI18n map[string]string `json:"question"`
}

func (q *Question) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       json.RawMessage   `json:"question_id"`
		Color    string            `json:"color"`
		TextI18n map[string]string `json:"question"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	q.ID = FlexString(raw.ID)
	q.Color = raw.Color
	q.TextI18n = raw.TextI18n
	return nil
}

// QuestionDetail is the payload of GET /question/:id.
type QuestionDetail struct {
	TextI18n    map[string]string   `json:"question"`
	AnswersI18n map[string][]string `json:"answers"`
	Color       string              `json:"color"`
}

// QuestionColor is the payload of GET /question-color/:id.
type QuestionColor struct {
	Color         string `json:"color"`
	GradientColor string `json:"gradientColor"`
}

// NewestAnswer is the payload of GET /get_newest_answer, which is either a bare
// id or {"answer_id": id}.
type NewestAnswer struct {
	ID string
}

func (n *NewestAnswer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			AnswerID json.RawMessage `json:"answer_id"`
			ID       json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		n.ID = FlexString(obj.AnswerID)
		if n.ID == "" {
			n.ID = FlexString(obj.ID)
		}
		return nil
	}
	n.ID = FlexString(b)
	return nil
}

// ScanResult is the normalized result of POST /process-image. Field names vary
// between backend versions, so decoding accepts several aliases.
type ScanResult struct {
	Answer     string  `json:"answer"`
	Question   string  `json:"question"`
	QuestionID string  `json:"question_id"`
	Language   string  `json:"language"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

func (r *ScanResult) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	// some backends wrap the payload in {"result": {...}}
	if inner, ok := raw["result"]; ok && len(bytes.TrimSpace(inner)) > 0 && bytes.TrimSpace(inner)[0] == '{' {
		if err := json.Unmarshal(inner, &raw); err != nil {
			return err
		}
	}
	pick := func(keys ...string) json.RawMessage {
		for _, k := range keys {
			if v, ok := raw[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
				return v
			}
		}
		return nil
	}
	out := ScanResult{
		Answer:     FlexString(pick("answer", "text", "answer_text")),
		Question:   FlexString(pick("question", "question_text")),
		QuestionID: FlexString(pick("question_id", "questionId")),
		Language:   FlexString(pick("language", "lang")),
		X:          0,
		Y:          0,
	}
	if v := pick("x", "x_axis_value", "xAxisValue"); v != nil {
		if f := FlexFloat(v); !math.IsNaN(f) {
			out.X = f
		}
	}
	if v := pick("y", "y_axis_value", "yAxisValue"); v != nil {
		if f := FlexFloat(v); !math.IsNaN(f) {
			out.Y = f
		}
	}
	*r = out
	return nil
}

// NewAnswer is the body sent to POST /answers.
type NewAnswer struct {
	QuestionID string  `json:"question_id"`
	Answer     string  `json:"answer"`
	Language   string  `json:"language"`
	X          float64 `json:"x_axis_value"`
	Y          float64 `json:"y_axis_value"`
}

// SavedAnswer is the response of POST /answers; the id key varies.
type SavedAnswer struct {
	ID string
}

func (s *SavedAnswer) UnmarshalJSON(b []byte) error {
	var n NewestAnswer
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	s.ID = n.ID
	return nil
}
