package classify

import (
	"strings"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
)

// Arbiter runs the sniffers in fixed precedence order over a sampled text
// and produces the single winning verdict.
type Arbiter struct {
	cfg Config
	log *logger.Logger
}

func NewArbiter(cfg Config, log *logger.Logger) *Arbiter {
	if log != nil {
		log = log.With("service", "ClassifyArbiter")
	}
	return &Arbiter{cfg: cfg, log: log}
}

func (a *Arbiter) Config() Config { return a.cfg }

// Classify never fails: malformed input yields a rejection, not an error.
// Precedence is JSON > CSV > QA > quoted > speaker > generic; the first
// sniffer with evidence wins so that structural formats pre-empt the textual
// heuristics, which could otherwise false-positive on JSON or CSV content
// containing colons or quote characters.
func (a *Arbiter) Classify(filename, text string) Verdict {
	ext := extFromName(filename)
	lines := strings.Split(text, "\n")
	nonempty := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.TrimSpace(ln) != "" {
			nonempty = append(nonempty, ln)
		}
	}

	stats := map[string]any{
		"ext":            ext,
		"sample_bytes":   len(text),
		"lines":          len(lines),
		"nonempty_lines": len(nonempty),
	}

	// Structural formats first: a single-line messages dump or a two-row CSV
	// is legitimately short, so the line floor applies only to the textual
	// sniffers below.
	if ev := sniffJSON(ext, text); ev != nil {
		return a.accept(ev, stats)
	}
	if ev := sniffCSV(ext, text, a.cfg.CSVScanLines); ev != nil {
		return a.accept(ev, stats)
	}

	if len(nonempty) < a.cfg.MinNonEmptyLines {
		return Verdict{
			Accepted:   false,
			Confidence: 0,
			Reasons:    []string{"content too short (not enough non-empty lines)"},
			Stats:      stats,
		}
	}

	window := nonempty
	if len(window) > a.cfg.MarkerScanLines {
		window = window[:a.cfg.MarkerScanLines]
	}
	qaMarkers := countMarkers(window, qaPatterns)
	quoteMarkers := countMarkers(window, quotePatterns)
	speakerMarkers := countMarkers(window, speakerPatterns)
	stats["qa_markers"] = qaMarkers
	stats["quote_markers"] = quoteMarkers
	stats["speaker_markers"] = speakerMarkers

	if ev := sniffQA(qaMarkers, a.cfg.QAMarkerMin); ev != nil {
		return a.accept(ev, stats)
	}
	if ev := sniffQuoted(quoteMarkers, a.cfg.QuoteMarkerMin); ev != nil {
		return a.accept(ev, stats)
	}
	if ev := sniffSpeaker(speakerMarkers, a.cfg.SpeakerMarkerMin); ev != nil {
		return a.accept(ev, stats)
	}
	if ev := sniffGeneric(len(nonempty), a.cfg.GenericMinLines); ev != nil {
		return a.accept(ev, stats)
	}

	return Verdict{
		Accepted:   false,
		Confidence: 0,
		Reasons:    []string{"format indeterminate (dialogue/QA/document features too weak)"},
		Stats:      stats,
	}
}

func (a *Arbiter) accept(ev *evidence, stats map[string]any) Verdict {
	for k, v := range ev.stats {
		stats[k] = v
	}
	if a.log != nil {
		a.log.Debug("classification verdict", "mode", string(ev.mode), "confidence", ev.confidence)
	}
	return Verdict{
		Accepted:   true,
		Mode:       ev.mode,
		Confidence: ev.confidence,
		Reasons:    []string{ev.reason},
		Stats:      stats,
	}
}
