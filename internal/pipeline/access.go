package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/docflow-backend/internal/domain"
)

// AccessPolicy restricts which agents may commit a transition into each
// stage. An empty policy permits everyone; "*" in a stage's writer list
// does the same for that stage.
type AccessPolicy struct {
	Writers map[types.Stage][]string `yaml:"writers"`
}

func LoadAccessPolicy(path string) (*AccessPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read access policy %s: %w", path, err)
	}
	var p AccessPolicy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse access policy %s: %w", path, err)
	}
	for stage := range p.Writers {
		if !stage.Valid() {
			return nil, fmt.Errorf("access policy %s: unknown stage %q", path, stage)
		}
	}
	return &p, nil
}

func (p *AccessPolicy) CanWrite(stage types.Stage, agentID string) bool {
	if p == nil || len(p.Writers) == 0 {
		return true
	}
	writers, ok := p.Writers[stage]
	if !ok {
		return true
	}
	for _, w := range writers {
		if w == "*" || w == agentID {
			return true
		}
	}
	return false
}
