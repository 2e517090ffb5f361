package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads a pipeline definition from a YAML file.
func LoadManifest(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pipeline Pipeline
	if err := yaml.Unmarshal(data, &pipeline); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	for i := range pipeline.Stages {
		if pipeline.Stages[i].Ordinal == 0 {
			pipeline.Stages[i].Ordinal = i + 1
		}
	}

	return &pipeline, nil
}

// Validate checks the pipeline configuration for errors.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	return validateStages(p.Stages)
}

func validateStages(stages []StageSpec) error {
	if len(stages) == 0 {
		return fmt.Errorf("pipeline must define at least one stage")
	}

	seen := make(map[string]struct{})
	for i, stage := range stages {
		if stage.Name == "" {
			return fmt.Errorf("stage %d: name is required", i+1)
		}
		if _, ok := seen[stage.Name]; ok {
			return fmt.Errorf("duplicate stage name: %s", stage.Name)
		}
		if stage.Ordinal != i+1 {
			return fmt.Errorf("stage %s has ordinal %d, want %d", stage.Name, stage.Ordinal, i+1)
		}
		if stage.Title == "" {
			return fmt.Errorf("stage %s must have a title", stage.Name)
		}
		if stage.Role == "" {
			return fmt.Errorf("stage %s must have a role", stage.Name)
		}
		if stage.Template == "" {
			return fmt.Errorf("stage %s must have a template", stage.Name)
		}
		if t := stage.Temperature; t != nil && (*t < 0 || *t > 2) {
			return fmt.Errorf("stage %s temperature %.2f outside [0, 2]", stage.Name, *t)
		}

		deps := make(map[string]struct{}, len(stage.DependsOn))
		for _, dep := range stage.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("stage %s depends on %q, which is not an earlier stage", stage.Name, dep)
			}
			if _, dup := deps[dep]; dup {
				return fmt.Errorf("stage %s lists dependency %q twice", stage.Name, dep)
			}
			deps[dep] = struct{}{}
		}

		if err := checkTemplates(stage); err != nil {
			return err
		}
		seen[stage.Name] = struct{}{}
	}

	return nil
}

// checkTemplates renders the stage's templates against placeholder data
// holding only its declared dependencies, so a template that reads any other
// stage fails here rather than mid-run.
func checkTemplates(stage StageSpec) error {
	data := promptData{Topic: "sample topic", Stages: map[string]string{}}
	if _, err := renderTemplate(stage.Name+" role", stage.Role, data); err != nil {
		return fmt.Errorf("stage %s role: %w", stage.Name, err)
	}
	for _, dep := range stage.DependsOn {
		data.Stages[dep] = "sample " + dep + " output"
	}
	if _, err := renderTemplate(stage.Name, stage.Template, data); err != nil {
		return fmt.Errorf("stage %s template: %w", stage.Name, err)
	}
	return nil
}
