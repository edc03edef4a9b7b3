// Package experiment drives a full run: load documents, build the raw graph,
// collapse, close and score it against the gold standard at every threshold.
package experiment

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/entailgraph/internal/config"
	"github.com/sells-group/entailgraph/internal/fragment"
)

// Evaluation settings, one results row each per threshold.
const (
	SettingRawWithoutFG     = "raw without FG"
	SettingRawWithFG        = "raw with FG"
	SettingCollapsed        = "collapsed"
	SettingCollapsedClosure = "collapsed+closure"
)

// Plan describes one experiment.
type Plan struct {
	Name              string    `yaml:"name"`
	Documents         string    `yaml:"documents"`
	Gold              string    `yaml:"gold"`
	Thresholds        []float64 `yaml:"thresholds"`
	StrictClosure     bool      `yaml:"strict_closure"`
	SingleClusterGold bool      `yaml:"single_cluster_gold"`
	OutputDir         string    `yaml:"output_dir"`
	Window            int       `yaml:"window"`
	MaxModifiers      int       `yaml:"max_modifiers"`
}

// PlanFromConfig fills a plan from the experiment and fragment settings.
func PlanFromConfig(cfg *config.Config, documents, gold string) Plan {
	return Plan{
		Name:              cfg.Experiment.Name,
		Documents:         documents,
		Gold:              gold,
		Thresholds:        append([]float64(nil), cfg.Experiment.Thresholds...),
		StrictClosure:     cfg.Experiment.StrictClosure,
		SingleClusterGold: cfg.Experiment.SingleClusterGold,
		OutputDir:         cfg.Experiment.OutputDir,
		Window:            cfg.Fragment.Window,
		MaxModifiers:      cfg.Fragment.MaxModifiers,
	}
}

// LoadPlan reads a YAML plan file. Unset fields fall back to cfg.
func LoadPlan(path string, cfg *config.Config) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, eris.Wrapf(err, "experiment: read plan %s", path)
	}
	p := PlanFromConfig(cfg, "", "")
	p.Thresholds = nil
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, eris.Wrapf(err, "experiment: parse plan %s", path)
	}
	if len(p.Thresholds) == 0 {
		p.Thresholds = append([]float64(nil), cfg.Experiment.Thresholds...)
	}
	return p, nil
}

// Normalize validates the plan, applies defaults and sorts thresholds from
// strictest to loosest without duplicates.
func (p *Plan) Normalize() error {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.Documents == "" {
		return eris.New("experiment: plan needs documents")
	}
	if len(p.Thresholds) == 0 {
		return eris.New("experiment: plan needs at least one threshold")
	}
	for _, th := range p.Thresholds {
		if th < 0 || th > 1 {
			return eris.Errorf("experiment: threshold %.3f out of [0,1]", th)
		}
	}
	if p.Window <= 0 {
		p.Window = fragment.DefaultWindow
	}
	if p.MaxModifiers < 0 {
		p.MaxModifiers = 0
	}

	ths := append([]float64(nil), p.Thresholds...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ths)))
	uniq := ths[:1]
	for _, th := range ths[1:] {
		if th != uniq[len(uniq)-1] {
			uniq = append(uniq, th)
		}
	}
	p.Thresholds = uniq
	return nil
}

// MinThreshold is the loosest threshold, used to build the raw graph once.
func (p Plan) MinThreshold() float64 {
	return p.Thresholds[len(p.Thresholds)-1]
}

func (p Plan) fragmentOptions() fragment.Options {
	return fragment.Options{Window: p.Window, MaxModifiers: p.MaxModifiers}
}
