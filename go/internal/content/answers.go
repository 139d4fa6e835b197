package content

import (
	"encoding/json"
	"strings"
)

// Placeholder fills answer slots a content file left empty.
const Placeholder = "—"

// NormalizeAnswers converts the heterogeneous answer shapes found in content
// files into exactly four labeled slots. Supported inputs:
//
//	{"A": "...", "B": "...", ...}          (upper or lower case keys)
//	["...", "...", "...", "..."]
//	[{"label": "A", "text": "..."}, ...]   (also letter/value/answer keys)
//
// Missing or blank slots come back as the placeholder. This is a boundary
// adapter for content files only; the engine never sees raw answer shapes.
func NormalizeAnswers(raw json.RawMessage) [4]string {
	out := [4]string{Placeholder, Placeholder, Placeholder, Placeholder}
	if len(raw) == 0 {
		return out
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		letters := []string{"A", "B", "C", "D"}
		for i, l := range letters {
			if v, ok := asMap[l]; ok {
				setSlot(&out, i, v)
			} else if v, ok := asMap[strings.ToLower(l)]; ok {
				setSlot(&out, i, v)
			}
		}
		return out
	}

	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil {
		for i := 0; i < 4 && i < len(asStrings); i++ {
			setSlot(&out, i, asStrings[i])
		}
		return out
	}

	type labeled struct {
		Label  string `json:"label"`
		Letter string `json:"letter"`
		Text   string `json:"text"`
		Value  string `json:"value"`
		Answer string `json:"answer"`
	}
	var asObjects []labeled
	if err := json.Unmarshal(raw, &asObjects); err == nil {
		byLetter := map[string]string{}
		var unlabeled []string
		for _, item := range asObjects {
			letter := strings.ToUpper(strings.TrimSpace(item.Label))
			if letter == "" {
				letter = strings.ToUpper(strings.TrimSpace(item.Letter))
			}
			text := item.Text
			if text == "" {
				text = item.Value
			}
			if text == "" {
				text = item.Answer
			}
			switch letter {
			case "A", "B", "C", "D":
				byLetter[letter] = text
			default:
				unlabeled = append(unlabeled, text)
			}
		}
		if len(byLetter) > 0 {
			for i, l := range []string{"A", "B", "C", "D"} {
				if v, ok := byLetter[l]; ok {
					setSlot(&out, i, v)
				}
			}
		} else {
			for i := 0; i < 4 && i < len(unlabeled); i++ {
				setSlot(&out, i, unlabeled[i])
			}
		}
		return out
	}

	return out
}

func setSlot(out *[4]string, i int, v string) {
	if strings.TrimSpace(v) == "" {
		return
	}
	out[i] = v
}
