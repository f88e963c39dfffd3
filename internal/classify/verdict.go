package classify

// Mode tags the extraction strategy a downstream QA builder should use for
// an accepted document.
type Mode string

const (
	ModeSpeakerDialogue Mode = "A" // speaker-labeled dialogue lines
	ModeStructuredJSON  Mode = "B" // parseable JSON (messages dump etc.)
	ModeStructuredCSV   Mode = "C" // CSV with a dialogue-shaped header
	ModeGenericDocument Mode = "D" // plain document, generation-heavy QA
	ModeQALabeled       Mode = "E" // explicit Q:/A: labeling
	ModeQuotedThread    Mode = "F" // email/ticket quoted correspondence
)

// Verdict is the classifier's full answer for one sampled document.
// Mode is set iff Accepted; Reasons is never empty.
type Verdict struct {
	Accepted   bool           `json:"accepted"`
	Mode       Mode           `json:"mode,omitempty"`
	Confidence float64        `json:"confidence"`
	Reasons    []string       `json:"reasons"`
	Stats      map[string]any `json:"stats"`
}

// Sniffer-intrinsic confidence constants. These are a deliberate lookup
// table, not evidence-derived scores.
const (
	confStructuredJSON  = 0.92
	confStructuredCSV   = 0.90
	confQALabeled       = 0.85
	confSpeakerDialogue = 0.78
	confQuotedThread    = 0.75
	confGenericDocument = 0.60
)
