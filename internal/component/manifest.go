package component

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var idPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z_][A-Za-z0-9_-]*)*$`)

// ValidID reports whether id is a dotted identifier usable as an ownership prefix.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// HandlerDecl declares one script function subscribed to a channel.
type HandlerDecl struct {
	Channel  string `yaml:"channel"`
	Function string `yaml:"function"`
	ID       string `yaml:"id,omitempty"`
}

// HandlerDecls is a list of handler declarations.
//
// Accepted formats:
//   - compact map: handlers: {order-paid: on_order_paid}
//   - object array: handlers: [{channel: order-paid, function: on_order_paid}]
type HandlerDecls []HandlerDecl

func (h *HandlerDecls) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*h = nil
		return nil
	}

	switch n.Kind {
	case yaml.MappingNode:
		out := make([]HandlerDecl, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("handler for channel %q must name a function", key.Value)
			}
			out = append(out, HandlerDecl{
				Channel:  strings.TrimSpace(key.Value),
				Function: strings.TrimSpace(val.Value),
			})
		}
		*h = out
		return nil
	case yaml.SequenceNode:
		out := make([]HandlerDecl, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.MappingNode {
				return fmt.Errorf("invalid handler entry (must be an object)")
			}
			var tmp HandlerDecl
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid handler object: %w", err)
			}
			tmp.Channel = strings.TrimSpace(tmp.Channel)
			tmp.Function = strings.TrimSpace(tmp.Function)
			out = append(out, tmp)
		}
		*h = out
		return nil
	default:
		return fmt.Errorf("handlers must be a mapping or a sequence")
	}
}

// Manifest defines the structure of a script component's manifest.yaml file.
type Manifest struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	Description string       `yaml:"description,omitempty"`
	Author      string       `yaml:"author,omitempty"`
	MinPlatform string       `yaml:"min_platform,omitempty"`
	MaxPlatform string       `yaml:"max_platform,omitempty"`
	Requires    []string     `yaml:"requires,omitempty"`
	Entrypoint  string       `yaml:"entrypoint"`
	Handlers    HandlerDecls `yaml:"handlers"`
}

// Discovered is a validated manifest together with its resolved paths.
type Discovered struct {
	Manifest   Manifest
	Path       string // Absolute path to the component directory
	Entrypoint string // Absolute path to the script entrypoint
}

// Component converts the manifest into a registry entry. Script components
// are always optional.
func (d *Discovered) Component() Component {
	name := d.Manifest.Name
	if name == "" {
		name = d.Manifest.ID
	}
	return Component{
		ID:          d.Manifest.ID,
		Name:        name,
		Version:     d.Manifest.Version,
		Description: d.Manifest.Description,
		Author:      d.Manifest.Author,
		Source:      SourceScript,
		MinPlatform: d.Manifest.MinPlatform,
		MaxPlatform: d.Manifest.MaxPlatform,
		Requires:    d.Manifest.Requires,
	}
}

// validateManifest checks required manifest fields.
func validateManifest(m *Manifest) error {
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !ValidID(m.ID) {
		return fmt.Errorf("id %q must be a dotted identifier", m.ID)
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}

	if m.Entrypoint == "" {
		return fmt.Errorf("entrypoint is required")
	}
	if strings.Contains(m.Entrypoint, "..") {
		return fmt.Errorf("entrypoint contains path traversal: %s", m.Entrypoint)
	}
	if !strings.HasSuffix(m.Entrypoint, ".lua") {
		return fmt.Errorf("entrypoint must be a .lua script: %s", m.Entrypoint)
	}

	if len(m.Handlers) == 0 {
		return fmt.Errorf("at least one handler must be declared")
	}
	for i, h := range m.Handlers {
		if h.Channel == "" {
			return fmt.Errorf("handlers[%d]: channel is required", i)
		}
		if h.Function == "" {
			return fmt.Errorf("handlers[%d] (%s): function is required", i, h.Channel)
		}
	}

	for _, dep := range m.Requires {
		if !ValidID(dep) {
			return fmt.Errorf("requires entry %q must be a dotted identifier", dep)
		}
	}

	return nil
}
