package pipeline

// Pipeline is an ordered list of stages, loadable from a YAML manifest.
type Pipeline struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Stages      []StageSpec `yaml:"stages"`
}

// Default returns the built-in product planning pipeline for a profile.
func Default(profile string) (*Pipeline, error) {
	stages, err := DefaultStages(profile)
	if err != nil {
		return nil, err
	}
	if profile == "" {
		profile = ProfileDetailed
	}
	return &Pipeline{
		Name:        "product-plan",
		Description: "Four-agent product planning workflow (" + profile + ")",
		Stages:      stages,
	}, nil
}

// StageNames returns the stage names in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	return names
}
