package classify

import (
	"fmt"
	"strings"
	"testing"
)

func newTestArbiter(t *testing.T) *Arbiter {
	t.Helper()
	return NewArbiter(DefaultConfig(), nil)
}

func repeatLines(line string, n int) string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func TestClassifyShortContent(t *testing.T) {
	a := newTestArbiter(t)

	v := a.Classify("notes.txt", "short")
	if v.Accepted {
		t.Fatalf("expected rejection for short content, got %+v", v)
	}
	if v.Mode != "" {
		t.Fatalf("rejected verdict must not carry a mode, got %q", v.Mode)
	}
	if len(v.Reasons) == 0 || !strings.Contains(v.Reasons[0], "too short") {
		t.Fatalf("expected 'too short' reason, got %v", v.Reasons)
	}
	if v.Stats["nonempty_lines"] != 1 {
		t.Fatalf("expected nonempty_lines=1, got %v", v.Stats["nonempty_lines"])
	}
}

func TestClassifyJSONMessages(t *testing.T) {
	a := newTestArbiter(t)

	entries := make([]string, 0, 31)
	for i := 0; i < 31; i++ {
		entries = append(entries, fmt.Sprintf(`{"role":"user","content":"msg %d"}`, i))
	}
	text := `{"messages":[` + strings.Join(entries, ",") + `]}`

	v := a.Classify("chat.json", text)
	if !v.Accepted || v.Mode != ModeStructuredJSON {
		t.Fatalf("expected accepted mode B, got %+v", v)
	}
	if v.Stats["json_kind"] != "messages" {
		t.Fatalf("expected json_kind=messages, got %v", v.Stats["json_kind"])
	}
	if v.Confidence != confStructuredJSON {
		t.Fatalf("expected confidence %v, got %v", confStructuredJSON, v.Confidence)
	}
}

func TestClassifyJSONRoleList(t *testing.T) {
	a := newTestArbiter(t)

	v := a.Classify("dump.json", `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`)
	if !v.Accepted || v.Mode != ModeStructuredJSON {
		t.Fatalf("expected accepted mode B, got %+v", v)
	}
	if v.Stats["json_kind"] != "role_list" {
		t.Fatalf("expected json_kind=role_list, got %v", v.Stats["json_kind"])
	}
}

func TestClassifyCSVShortExport(t *testing.T) {
	a := newTestArbiter(t)

	v := a.Classify("export.csv", "speaker,text\nuser,hello\nbot,hi\n")
	if !v.Accepted || v.Mode != ModeStructuredCSV {
		t.Fatalf("expected accepted mode C for two-row CSV, got %+v", v)
	}
	header, ok := v.Stats["csv_header"].([]string)
	if !ok || len(header) != 2 || header[0] != "speaker" || header[1] != "text" {
		t.Fatalf("unexpected csv_header: %v", v.Stats["csv_header"])
	}
}

func TestClassifyCSVWithoutDialogueHeader(t *testing.T) {
	a := newTestArbiter(t)

	v := a.Classify("data.csv", "id,amount\n1,100\n2,200\n")
	if v.Accepted {
		t.Fatalf("CSV without speaker/role header must not match the CSV path, got %+v", v)
	}
}

func TestClassifyPrecedenceCSVOverSpeaker(t *testing.T) {
	a := newTestArbiter(t)

	rows := []string{"role,content"}
	for i := 0; i < 12; i++ {
		rows = append(rows, fmt.Sprintf("user: line %d,body %d", i, i))
	}
	v := a.Classify("dialogue.csv", strings.Join(rows, "\n"))
	if !v.Accepted || v.Mode != ModeStructuredCSV {
		t.Fatalf("structural CSV must pre-empt the speaker heuristic, got %+v", v)
	}
}

func TestClassifyMalformedJSONFallsThrough(t *testing.T) {
	a := newTestArbiter(t)

	// Broken JSON but strong speaker labeling: the extension is a hint, not
	// authoritative, so the textual sniffers still get a look.
	text := "{not valid json\n" + repeatLines("user: hello there", 12)
	v := a.Classify("broken.json", text)
	if !v.Accepted || v.Mode != ModeSpeakerDialogue {
		t.Fatalf("expected fallthrough to speaker mode A, got %+v", v)
	}
}

func TestClassifyQALabels(t *testing.T) {
	a := newTestArbiter(t)

	lines := []string{}
	for i := 0; i < 6; i++ {
		lines = append(lines, fmt.Sprintf("Q: question %d", i), fmt.Sprintf("A: answer %d", i))
	}
	v := a.Classify("faq.txt", strings.Join(lines, "\n"))
	if !v.Accepted || v.Mode != ModeQALabeled {
		t.Fatalf("expected mode E, got %+v", v)
	}
	if v.Stats["qa_markers"].(int) < 6 {
		t.Fatalf("expected qa_markers >= 6, got %v", v.Stats["qa_markers"])
	}
}

func TestClassifyJapaneseQALabels(t *testing.T) {
	a := newTestArbiter(t)

	lines := []string{}
	for i := 0; i < 6; i++ {
		lines = append(lines, fmt.Sprintf("質問：その%d", i), fmt.Sprintf("回答：その%d", i))
	}
	v := a.Classify("faq.txt", strings.Join(lines, "\n"))
	if !v.Accepted || v.Mode != ModeQALabeled {
		t.Fatalf("expected mode E for fullwidth-colon labels, got %+v", v)
	}
}

func TestClassifyQuotedThread(t *testing.T) {
	a := newTestArbiter(t)

	lines := []string{
		"From: alice@example.com",
		"Sent: Monday",
		"Subject: re: the ticket",
	}
	for i := 0; i < 8; i++ {
		lines = append(lines, fmt.Sprintf("> quoted line %d", i))
	}
	v := a.Classify("thread.txt", strings.Join(lines, "\n"))
	if !v.Accepted || v.Mode != ModeQuotedThread {
		t.Fatalf("expected mode F, got %+v", v)
	}
}

func TestClassifySpeakerDialogue(t *testing.T) {
	a := newTestArbiter(t)

	lines := []string{}
	for i := 0; i < 6; i++ {
		lines = append(lines, fmt.Sprintf("山田: こんにちは %d", i), fmt.Sprintf("assistant: reply %d", i))
	}
	v := a.Classify("log.txt", strings.Join(lines, "\n"))
	if !v.Accepted || v.Mode != ModeSpeakerDialogue {
		t.Fatalf("expected mode A, got %+v", v)
	}
	if v.Stats["speaker_markers"].(int) < 10 {
		t.Fatalf("expected speaker_markers >= 10, got %v", v.Stats["speaker_markers"])
	}
}

func TestClassifyGenericProse(t *testing.T) {
	a := newTestArbiter(t)

	v := a.Classify("essay.txt", repeatLines("the quick brown fox jumps over the lazy dog", 40))
	if !v.Accepted || v.Mode != ModeGenericDocument {
		t.Fatalf("expected mode D for 40 lines of prose, got %+v", v)
	}
	if v.Confidence < 0.55 || v.Confidence > 0.6 {
		t.Fatalf("generic confidence out of expected band: %v", v.Confidence)
	}
}

func TestClassifyIndeterminate(t *testing.T) {
	a := newTestArbiter(t)

	// Enough lines to clear the floor, too few for the generic sniffer, no
	// markers of any kind.
	v := a.Classify("misc.txt", repeatLines("plain words without structure", 15))
	if v.Accepted {
		t.Fatalf("expected indeterminate rejection, got %+v", v)
	}
	if len(v.Reasons) == 0 || !strings.Contains(v.Reasons[0], "indeterminate") {
		t.Fatalf("expected indeterminate reason, got %v", v.Reasons)
	}
}

func TestClassifyRejectionIsDeterministic(t *testing.T) {
	a := newTestArbiter(t)

	first := a.Classify("x.txt", "tiny")
	second := a.Classify("x.txt", "tiny")
	if first.Accepted || second.Accepted {
		t.Fatalf("expected both rejected")
	}
	if len(first.Reasons) != len(second.Reasons) || first.Reasons[0] != second.Reasons[0] {
		t.Fatalf("rejection is not deterministic: %v vs %v", first.Reasons, second.Reasons)
	}
}

func TestVerdictInvariants(t *testing.T) {
	a := newTestArbiter(t)

	inputs := []struct {
		name string
		text string
	}{
		{"empty.txt", ""},
		{"short.txt", "hello"},
		{"chat.json", `{"messages":[{"role":"user","content":"hi"}]}`},
		{"export.csv", "speaker,text\nuser,hello\nbot,hi\n"},
		{"faq.txt", repeatLines("Q: why\nA: because", 6)},
		{"thread.txt", repeatLines("> quoted", 12)},
		{"talk.txt", repeatLines("user: hi", 12)},
		{"essay.txt", repeatLines("prose line without markers", 40)},
		{"noise.txt", repeatLines("prose line without markers", 12)},
		{"broken.json", "{oops"},
	}
	valid := map[Mode]bool{
		ModeSpeakerDialogue: true, ModeStructuredJSON: true, ModeStructuredCSV: true,
		ModeGenericDocument: true, ModeQALabeled: true, ModeQuotedThread: true,
	}

	for _, in := range inputs {
		t.Run(in.name, func(t *testing.T) {
			v := a.Classify(in.name, in.text)
			if v.Accepted != (v.Mode != "") {
				t.Fatalf("mode must be set iff accepted: %+v", v)
			}
			if v.Accepted && !valid[v.Mode] {
				t.Fatalf("mode outside A..F: %q", v.Mode)
			}
			if len(v.Reasons) == 0 {
				t.Fatalf("reasons must never be empty: %+v", v)
			}
			if v.Confidence < 0 || v.Confidence > 1 {
				t.Fatalf("confidence out of [0,1]: %v", v.Confidence)
			}
			for _, key := range []string{"ext", "lines", "nonempty_lines", "sample_bytes"} {
				if _, ok := v.Stats[key]; !ok {
					t.Fatalf("stats missing %q: %v", key, v.Stats)
				}
			}
		})
	}
}
