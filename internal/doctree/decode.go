package doctree

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode reads a serialized tree handed over by an external parse engine.
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
// The returned tree is prepared for rendering.
func Decode(r io.Reader, filename string) (*DocTree, error) {
	var tree DocTree
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&tree); err != nil {
			return nil, fmt.Errorf("decode yaml tree: %w", err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&tree); err != nil {
			return nil, fmt.Errorf("decode json tree: %w", err)
		}
	}
	if tree.Attributes == nil {
		tree.Attributes = Attributes{}
	}
	tree.Prepare()
	return &tree, nil
}
