package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Window is a half-open hour range [Start, End) in local time.
type Window struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether the hour falls inside the window. Windows that
// wrap midnight (Start > End) are supported.
func (w Window) Contains(hour int) bool {
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

// WorkPattern describes the caller's daily cognitive windows. Hours outside
// all three windows run at normal tempo.
type WorkPattern struct {
	HighFocus    Window `yaml:"high_focus"`    // deep-work hours → aggressive tempo
	Execution    Window `yaml:"execution"`     // routine-work hours → normal tempo
	LowCognitive Window `yaml:"low_cognitive"` // wind-down hours → low tempo
}

// DefaultWorkPattern returns a typical day: deep work in the morning,
// execution in the afternoon, wind-down in the evening.
func DefaultWorkPattern() WorkPattern {
	return WorkPattern{
		HighFocus:    Window{Start: 8, End: 12},
		Execution:    Window{Start: 13, End: 18},
		LowCognitive: Window{Start: 21, End: 24},
	}
}

// LoadWorkPattern reads a work pattern from a YAML file. An empty path
// returns the default pattern.
func LoadWorkPattern(path string) (WorkPattern, error) {
	if path == "" {
		return DefaultWorkPattern(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return WorkPattern{}, fmt.Errorf("failed to read work pattern %s: %w", path, err)
	}

	var pattern WorkPattern
	if err := yaml.Unmarshal(data, &pattern); err != nil {
		return WorkPattern{}, fmt.Errorf("failed to parse work pattern %s: %w", path, err)
	}

	for _, w := range []Window{pattern.HighFocus, pattern.Execution, pattern.LowCognitive} {
		if w.Start < 0 || w.Start > 24 || w.End < 0 || w.End > 24 {
			return WorkPattern{}, fmt.Errorf("work pattern %s: window bounds must be within 0-24", path)
		}
	}

	return pattern, nil
}
