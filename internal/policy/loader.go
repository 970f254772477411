package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/campuserp/abac-core/pkg/types"
)

// Loader reads policy rule files from disk. Files are YAML or JSON and hold
// either a single rule or a `policies:` list; useful for seeding a
// deployment before the admin UI takes over authoring.
type Loader struct {
	logger    *zap.Logger
	validator *Validator
}

// NewLoader creates a new policy file loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger:    logger,
		validator: NewValidator(),
	}
}

// policyFile is the on-disk document shape.
type policyFile struct {
	Policies []*types.PolicyRule `json:"policies" yaml:"policies"`
}

// LoadFromDirectory loads every policy file in a directory. Files that fail
// to parse or validate are skipped with a warning so one bad file cannot
// take down the rest of the rule set.
func (l *Loader) LoadFromDirectory(path string) ([]*types.PolicyRule, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read policy directory: %w", err)
	}

	var rules []*types.PolicyRule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		filePath := filepath.Join(path, entry.Name())
		loaded, err := l.LoadFromFile(filePath)
		if err != nil {
			l.logger.Warn("Failed to load policy file",
				zap.String("file", filePath),
				zap.Error(err),
			)
			continue
		}
		rules = append(rules, loaded...)
	}

	return rules, nil
}

// LoadFromFile loads and validates the rules in a single file.
func (l *Loader) LoadFromFile(filePath string) ([]*types.PolicyRule, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var doc policyFile
	ext := filepath.Ext(filePath)
	if ext == ".json" {
		err = json.Unmarshal(content, &doc)
	} else {
		err = yaml.Unmarshal(content, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	rules := doc.Policies
	if len(rules) == 0 {
		// Fall back to a single top-level rule document.
		var single types.PolicyRule
		if ext == ".json" {
			err = json.Unmarshal(content, &single)
		} else {
			err = yaml.Unmarshal(content, &single)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		rules = []*types.PolicyRule{&single}
	}

	for _, rule := range rules {
		if err := l.validator.ValidateRule(rule); err != nil {
			return nil, fmt.Errorf("invalid policy %q: %w", rule.Name, err)
		}
	}

	return rules, nil
}
