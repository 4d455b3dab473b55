package extraction

// fragments.go: localiza y decodifica los fragmentos JSON del texto del pipeline.
//
// Estrategia:
//   - Los bloques ```json ... ``` son fronteras duras: un objeto roto dentro de un
//     bloque nunca se come el texto que viene después.
//   - Fuera de los bloques se buscan objetos {...} balanceados (respetando strings).
//   - Cada fragmento se decodifica con encoding/json en streaming, conservando el
//     orden de las keys, las keys duplicadas y los objetos anidados.
//   - Si el fragmento no es JSON válido, un scanner tolerante extrae los pares
//     "key": value bien formados que contenga.

import (
	"bytes"
	"encoding/json"
	"strings"
)

const fence = "```"

// occurrence is one "key": value pair found in the text, in text order.
type occurrence struct {
	key string
	raw string // JSON text of the value
}

// fragment is one JSON-looking region of the pipeline output.
type fragment struct {
	body string
}

// scanOccurrences returns every key/value pair of every fragment, in text order.
func scanOccurrences(text string) []occurrence {
	var occs []occurrence
	for _, f := range locateFragments(text) {
		decoded, err := decodeOrdered(f.body)
		if err != nil {
			occs = append(occs, scanLenient(f.body)...)
			continue
		}
		occs = append(occs, decoded...)
	}
	return occs
}

// locateFragments splits text into fenced blocks and free text, then finds the
// top-level objects of each segment.
func locateFragments(text string) []fragment {
	var frags []fragment
	pos := 0
	for pos < len(text) {
		open := strings.Index(text[pos:], fence)
		if open < 0 {
			frags = append(frags, findObjects(text[pos:])...)
			break
		}
		open += pos
		frags = append(frags, findObjects(text[pos:open])...)

		contentStart := open + len(fence)
		// Saltar el tag de lenguaje ("json", "JSON", ...) hasta el salto de línea.
		if nl := strings.IndexByte(text[contentStart:], '\n'); nl >= 0 && !strings.ContainsAny(text[contentStart:contentStart+nl], "{}") {
			contentStart += nl + 1
		}

		closeIdx := strings.Index(text[contentStart:], fence)
		if closeIdx < 0 {
			frags = append(frags, findObjects(text[contentStart:])...)
			break
		}
		closeIdx += contentStart
		frags = append(frags, findObjects(text[contentStart:closeIdx])...)
		pos = closeIdx + len(fence)
	}
	return frags
}

// findObjects returns the balanced top-level {...} regions of segment. An object
// that never closes extends to the end of the segment.
func findObjects(segment string) []fragment {
	var frags []fragment
	i := 0
	for i < len(segment) {
		start := strings.IndexByte(segment[i:], '{')
		if start < 0 {
			break
		}
		start += i
		end := matchClose(segment, start, '{', '}')
		if end < 0 {
			frags = append(frags, fragment{body: segment[start:]})
			break
		}
		frags = append(frags, fragment{body: segment[start : end+1]})
		i = end + 1
	}
	return frags
}

// matchClose returns the index of the bracket closing s[start], or -1.
func matchClose(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// decodeOrdered walks a JSON object with a token decoder so key order and
// duplicate keys survive. Nothing is returned unless the whole body decodes.
func decodeOrdered(body string) ([]occurrence, error) {
	var raw json.RawMessage
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	var occs []occurrence
	if err := walkValue(raw, &occs); err != nil {
		return nil, err
	}
	return occs, nil
}

func walkValue(raw json.RawMessage, occs *[]occurrence) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '{':
		return walkObject(trimmed, occs)
	case '[':
		return walkArray(trimmed, occs)
	}
	return nil
}

func walkObject(raw []byte, occs *[]occurrence) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return err
		}
		*occs = append(*occs, occurrence{key: key, raw: string(v)})
		if err := walkValue(v, occs); err != nil {
			return err
		}
	}
	return nil
}

func walkArray(raw []byte, occs *[]occurrence) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if err := walkValue(v, occs); err != nil {
			return err
		}
	}
	return nil
}

// scanLenient extracts the well-formed "key": value pairs of a broken fragment.
// Values are strings, literals, numbers or bracketed arrays.
func scanLenient(body string) []occurrence {
	var occs []occurrence
	i := 0
	for i < len(body) {
		q := strings.IndexByte(body[i:], '"')
		if q < 0 {
			break
		}
		keyStart := i + q
		keyEnd := stringEnd(body, keyStart)
		if keyEnd < 0 {
			i = keyStart + 1
			continue
		}
		var key string
		if err := json.Unmarshal([]byte(body[keyStart:keyEnd+1]), &key); err != nil {
			i = keyEnd + 1
			continue
		}

		j := skipSpace(body, keyEnd+1)
		if j >= len(body) || body[j] != ':' {
			i = keyEnd + 1
			continue
		}
		j = skipSpace(body, j+1)
		valEnd := valueEnd(body, j)
		if valEnd <= j {
			i = j
			continue
		}
		occs = append(occs, occurrence{key: key, raw: body[j:valEnd]})
		i = valEnd
	}
	return occs
}

// stringEnd returns the index of the quote closing the string opened at start.
func stringEnd(s string, start int) int {
	escaped := false
	for i := start + 1; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			return i
		case s[i] == '\n':
			return -1
		}
	}
	return -1
}

// valueEnd returns the exclusive end of the scalar/array value starting at i,
// or i when nothing usable starts there.
func valueEnd(s string, i int) int {
	if i >= len(s) {
		return i
	}
	switch c := s[i]; {
	case c == '"':
		if end := stringEnd(s, i); end >= 0 {
			return end + 1
		}
		return i
	case c == '[':
		if end := matchClose(s, i, '[', ']'); end >= 0 {
			return end + 1
		}
		return i
	default:
		j := i
		for j < len(s) && strings.IndexByte("+-.0123456789eEtruefalsn", s[j]) >= 0 {
			j++
		}
		return j
	}
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}
