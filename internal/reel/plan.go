package reel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"reelsmith/internal/services"
)

// Transition kinds recognized by the renderer.
const (
	TransitionNone = "none"
	TransitionCut  = "cut"
	TransitionFade = "fade"
)

// Transition directs how a clip joins the previous one.
type Transition struct {
	Kind     string  `json:"kind"`
	Duration float64 `json:"duration,omitempty"`
}

// Clip is one segment of the source scheduled into the reel.
type Clip struct {
	Start  float64  `json:"start"`
	End    float64  `json:"end"`
	Score  float64  `json:"score"`
	Guests []string `json:"guests,omitempty"`
	// Transition joins this clip to the one before it; the first clip's is
	// always "none".
	Transition Transition `json:"transition"`
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 { return c.End - c.Start }

// Plan is the edit plan handed to the renderer. It carries no encoding
// detail, only source timestamps, ordering, and transitions.
type Plan struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Title        string  `json:"title,omitempty"`
	TitleScreenS float64 `json:"title_screen_s,omitempty"`
	Ordering     string  `json:"ordering"`
	Clips        []Clip  `json:"clips"`
	TotalS       float64 `json:"total_s"`
}

// planNamespace pins plan ids to their inputs: the same source cut the same
// way always gets the same id.
var planNamespace = uuid.MustParse("1f6f42a7-9f2e-4c5b-8d3a-5b0e6f1c9a84")

func planID(source string, clips []Clip) string {
	payload := source
	for _, c := range clips {
		payload += fmt.Sprintf("|%g:%g", c.Start, c.End)
	}
	return uuid.NewSHA1(planNamespace, []byte(payload)).String()
}

// ClipTotal returns the summed clip durations. Unlike TotalS it excludes the
// title screen.
func (p *Plan) ClipTotal() float64 {
	var total float64
	for _, c := range p.Clips {
		total += c.Duration()
	}
	return total
}

// CheckDuration verifies the summed clip durations against the configured
// ceiling with 10% slack. The title screen is not counted; it sits on top of
// whatever the selector chose. A violation is a planning bug, not bad input.
func (p *Plan) CheckDuration(minTotal, maxTotal float64) error {
	if len(p.Clips) == 0 {
		return nil
	}
	if total := p.ClipTotal(); total > maxTotal*1.1 {
		return services.Wrap(services.ErrLogicInvariant, "reel", "check duration",
			fmt.Sprintf("clips run %.1fs, ceiling %.1fs", total, maxTotal), nil)
	}
	return nil
}

// WriteFile renders the plan as indented JSON at path, creating parent
// directories as needed.
func (p *Plan) WriteFile(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrTransient, "reel", "encode plan", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "reel", "write plan", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "reel", "write plan", path, err)
	}
	return nil
}

// ReadFile loads a plan previously written with WriteFile.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "reel", "read plan", path, err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, services.Wrap(services.ErrTransient, "reel", "parse plan", path, err)
	}
	return &p, nil
}
