package config

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// SubstituteEnv replaces ${VAR} references in every scalar of the YAML
// document with values from lookup. Comments and keys are left alone. A
// reference to an unset variable is an error.
func SubstituteEnv(doc []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("%w: error parsing config file: %v", ErrConfig, err)
	}

	if err := substituteNode(&root, lookup); err != nil {
		return nil, err
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("error re-encoding config: %w", err)
	}
	return out, nil
}

func substituteNode(n *yaml.Node, lookup func(string) (string, bool)) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return substituteScalar(n, lookup)
	case yaml.MappingNode:
		// Content alternates key, value.
		for i := 1; i < len(n.Content); i += 2 {
			if err := substituteNode(n.Content[i], lookup); err != nil {
				return err
			}
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if err := substituteNode(c, lookup); err != nil {
				return err
			}
		}
	}
	return nil
}

func substituteScalar(n *yaml.Node, lookup func(string) (string, bool)) error {
	if !envRef.MatchString(n.Value) {
		return nil
	}

	var missing string
	n.Value = envRef.ReplaceAllStringFunc(n.Value, func(ref string) string {
		name := envRef.FindStringSubmatch(ref)[1]
		value, ok := lookup(name)
		if !ok && missing == "" {
			missing = name
		}
		return value
	})
	if missing != "" {
		return fmt.Errorf("%w: environment variable '%s' not found", ErrConfig, missing)
	}

	// Let the substituted text resolve to its own type (e.g. a number).
	n.Tag = ""
	n.Style = 0
	return nil
}
