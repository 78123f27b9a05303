package fslint

import (
	"errors"

	"github.com/golangci/plugin-module-register/register"
	"golang.org/x/tools/go/analysis"
)

func init() {
	register.Plugin("fslint", New)
}

// PluginSettings is the custom linter block from .golangci.yml.
type PluginSettings struct {
	Config string `json:"config"`
}

type plugin struct {
	config string
}

// New builds the golangci-lint plugin. The config path is checked here so a
// missing setting fails at startup instead of once per package.
func New(settings any) (register.LinterPlugin, error) {
	s, err := register.DecodeSettings[PluginSettings](settings)
	if err != nil {
		return nil, err
	}
	if s.Config == "" {
		return nil, errors.New("fslint: settings.config must point at a .fslint.toml")
	}
	return &plugin{config: s.Config}, nil
}

func (p *plugin) BuildAnalyzers() ([]*analysis.Analyzer, error) {
	configFile = p.config
	return []*analysis.Analyzer{Analyzer}, nil
}

// GetLoadMode is syntax only; imports are resolved from the file's import specs.
func (p *plugin) GetLoadMode() string {
	return register.LoadModeSyntax
}
