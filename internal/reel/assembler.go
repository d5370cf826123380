package reel

import (
	"log/slog"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/segment"
)

// Assembler turns selected segments into a Plan. It is a pure transformation:
// ordering, transitions, and the title screen are decided here, encoding is
// not.
type Assembler struct {
	cfg    config.Reel
	logger *slog.Logger
	titler cases.Caser
}

// NewAssembler returns an Assembler with the given reel configuration.
func NewAssembler(cfg config.Reel, logger *slog.Logger) *Assembler {
	return &Assembler{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "reel"),
		titler: cases.Title(language.English),
	}
}

// Assemble orders segments per the configured policy, attaches transitions,
// and returns the finished plan. Identical segments always produce an
// identical plan.
func (a *Assembler) Assemble(source string, segments []segment.Segment) *Plan {
	ordered := make([]segment.Segment, len(segments))
	copy(ordered, segments)
	switch a.cfg.Ordering {
	case "best_first":
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Score != ordered[j].Score {
				return ordered[i].Score > ordered[j].Score
			}
			return ordered[i].Start < ordered[j].Start
		})
	default:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
	}

	plan := &Plan{
		Source:   source,
		Ordering: a.cfg.Ordering,
	}
	if a.cfg.Title != "" {
		plan.Title = a.titler.String(a.cfg.Title)
		plan.TitleScreenS = a.cfg.TitleScreenS
		plan.TotalS += a.cfg.TitleScreenS
	}
	for i, seg := range ordered {
		clip := Clip{
			Start:  seg.Start,
			End:    seg.End,
			Score:  seg.Score,
			Guests: seg.Guests,
		}
		if i == 0 {
			clip.Transition = Transition{Kind: TransitionNone}
		} else {
			clip.Transition = a.transition()
		}
		plan.Clips = append(plan.Clips, clip)
		plan.TotalS += clip.Duration()
	}
	plan.ID = planID(source, plan.Clips)

	a.logger.Debug("plan assembled",
		logging.String("plan_id", plan.ID),
		logging.Int("clips", len(plan.Clips)),
		logging.Float64("total_s", plan.TotalS))
	return plan
}

func (a *Assembler) transition() Transition {
	switch a.cfg.Transition {
	case TransitionFade:
		return Transition{Kind: TransitionFade, Duration: a.cfg.TransitionS}
	default:
		return Transition{Kind: TransitionCut}
	}
}
