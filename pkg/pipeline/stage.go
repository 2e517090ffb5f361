package pipeline

import "fmt"

// Stage names of the product planning workflow, in execution order.
const (
	StageResearch  = "research"
	StageAnalysis  = "analysis"
	StageBlueprint = "blueprint"
	StageReview    = "review"
)

// Prompt profiles.
const (
	ProfileDetailed = "detailed"
	ProfileBrief    = "brief"
)

// StageSpec is the static definition of one stage: who the agent is and how
// its user message is assembled from the outputs of earlier stages.
//
// Role and Template are text/template sources. Role sees only .Topic;
// Template additionally sees .Stages, which holds exactly the outputs named
// in DependsOn after the context policy has been applied.
type StageSpec struct {
	Name        string   `yaml:"name"`
	Ordinal     int      `yaml:"ordinal,omitempty"`
	Agent       string   `yaml:"agent,omitempty"`
	Title       string   `yaml:"title"`
	Summary     string   `yaml:"summary,omitempty"`
	Deliverable string   `yaml:"deliverable,omitempty"`
	Role        string   `yaml:"role"`
	Template    string   `yaml:"template"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// DefaultStages returns the four built-in stages for a prompt profile.
func DefaultStages(profile string) ([]StageSpec, error) {
	var stages []StageSpec
	switch profile {
	case "", ProfileDetailed:
		stages = detailedStages()
	case ProfileBrief:
		stages = briefStages()
	default:
		return nil, fmt.Errorf("unknown profile %q (want %s or %s)", profile, ProfileDetailed, ProfileBrief)
	}
	for i := range stages {
		stages[i].Ordinal = i + 1
	}
	return stages, nil
}

// Profiles lists the built-in prompt profiles.
func Profiles() []string {
	return []string{ProfileDetailed, ProfileBrief}
}

func (s StageSpec) temperature(fallback float64) float64 {
	if s.Temperature != nil {
		return *s.Temperature
	}
	return fallback
}

func cloneStages(stages []StageSpec) []StageSpec {
	out := make([]StageSpec, len(stages))
	for i, s := range stages {
		s.DependsOn = append([]string(nil), s.DependsOn...)
		if s.Temperature != nil {
			t := *s.Temperature
			s.Temperature = &t
		}
		out[i] = s
	}
	return out
}
