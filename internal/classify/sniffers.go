package classify

import (
	"encoding/csv"
	"encoding/json"
	"regexp"
	"strings"
)

// evidence is a sniffer's positive finding: enough structured detail to
// populate the verdict's reasons and stats if this sniffer wins.
type evidence struct {
	mode       Mode
	confidence float64
	reason     string
	stats      map[string]any
}

func extFromName(name string) string {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		return strings.ToLower(base[i:])
	}
	return ""
}

// sniffJSON fires when the extension says .json or the trimmed text starts
// with a brace/bracket. A parse failure yields no evidence: the extension is
// a hint, not authoritative, and control falls through to later sniffers.
func sniffJSON(ext, text string) *evidence {
	trimmed := strings.TrimSpace(text)
	looksLike := strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
	if ext != ".json" && !looksLike {
		return nil
	}

	var root any
	if err := json.Unmarshal([]byte(trimmed), &root); err != nil {
		return nil
	}

	kind := "json"
	switch v := root.(type) {
	case map[string]any:
		if _, ok := v["messages"].([]any); ok {
			kind = "messages"
		} else if _, ok := v["items"].([]any); ok {
			kind = "list_like"
		} else if _, ok := v["rows"].([]any); ok {
			kind = "list_like"
		}
	case []any:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				if _, hasRole := first["role"]; hasRole {
					kind = "role_list"
				} else if _, hasContent := first["content"]; hasContent {
					kind = "role_list"
				}
			}
		}
	}

	return &evidence{
		mode:       ModeStructuredJSON,
		confidence: confStructuredJSON,
		reason:     "parses as JSON (" + kind + ")",
		stats:      map[string]any{"json_kind": kind},
	}
}

// sniffCSV probes only .csv-named inputs: a header row naming a
// speaker/text or role/content pairing plus at least one data row.
func sniffCSV(ext, text string, scanLines int) *evidence {
	if ext != ".csv" {
		return nil
	}

	lines := strings.Split(text, "\n")
	if len(lines) > scanLines {
		lines = lines[:scanLines]
	}
	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	reader.FieldsPerRecord = -1

	rows := [][]string{}
	for {
		rec, err := reader.Read()
		if err != nil {
			break
		}
		if len(rec) == 0 {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) < 2 {
		return nil
	}

	header := make([]string, 0, len(rows[0]))
	set := map[string]bool{}
	for _, c := range rows[0] {
		tok := strings.ToLower(strings.TrimSpace(c))
		header = append(header, tok)
		set[tok] = true
	}

	bodyish := set["text"] || set["message"] || set["content"]
	speakerText := set["speaker"] && bodyish
	roleContent := set["role"] && (set["content"] || set["text"] || set["message"])
	if !speakerText && !roleContent {
		return nil
	}

	return &evidence{
		mode:       ModeStructuredCSV,
		confidence: confStructuredCSV,
		reason:     "CSV header pairs speaker/text or role/content",
		stats:      map[string]any{"csv_header": header},
	}
}

var (
	qaPatterns = compileAll(
		`(?i)^\s*q\s*[:：]`,
		`(?i)^\s*a\s*[:：]`,
		`^\s*質問\s*[:：]`,
		`^\s*回答\s*[:：]`,
	)
	quotePatterns = compileAll(
		`^\s*>`,
		`(?i)^\s*from:\s`,
		`(?i)^\s*sent:\s`,
		`(?i)^\s*subject:\s`,
	)
	speakerPatterns = compileAll(
		`(?i)^\s*(user|assistant|system)\s*[:：]`,
		`(?i)^\s*(u|a|s)\s*[:：]`,
		`^\s*[^\s:：]{1,20}\s*[:：]\s+`,
	)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// countMarkers counts lines matching any of the patterns; a line counts at
// most once however many patterns it hits.
func countMarkers(lines []string, patterns []*regexp.Regexp) int {
	n := 0
	for _, ln := range lines {
		for _, rg := range patterns {
			if rg.MatchString(ln) {
				n++
				break
			}
		}
	}
	return n
}

func sniffQA(qaMarkers, threshold int) *evidence {
	if qaMarkers < threshold {
		return nil
	}
	return &evidence{
		mode:       ModeQALabeled,
		confidence: confQALabeled,
		reason:     "repeated Q:/A: labeling",
	}
}

// Strict line-prefix variant: only lines beginning with a quote marker or a
// mail header count. The loose "header anywhere in the first 80 lines"
// variant false-positives on prose that merely mentions a date.
func sniffQuoted(quoteMarkers, threshold int) *evidence {
	if quoteMarkers < threshold {
		return nil
	}
	return &evidence{
		mode:       ModeQuotedThread,
		confidence: confQuotedThread,
		reason:     "many quoted/header lines (mail or ticket thread)",
	}
}

func sniffSpeaker(speakerMarkers, threshold int) *evidence {
	if speakerMarkers < threshold {
		return nil
	}
	return &evidence{
		mode:       ModeSpeakerDialogue,
		confidence: confSpeakerDialogue,
		reason:     "repeated speaker labels (User:, Assistant:, names)",
	}
}

func sniffGeneric(nonemptyLines, threshold int) *evidence {
	if nonemptyLines < threshold {
		return nil
	}
	return &evidence{
		mode:       ModeGenericDocument,
		confidence: confGenericDocument,
		reason:     "no dialogue/QA structure, but enough body for generation-based QA",
	}
}
