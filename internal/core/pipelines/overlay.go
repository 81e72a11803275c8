package pipelines

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// OverlayFile is the YAML document that adjusts registered pipelines:
//
//	pipelines:
//	  opening_stock:
//	    batch_size: 50
//	    aliases:
//	      product_code: ["artikelnummer"]
type OverlayFile struct {
	Pipelines map[string]core.Overlay `yaml:"pipelines"`
}

// ParseOverlay decodes an overlay document.
func ParseOverlay(data []byte) (*OverlayFile, error) {
	var f OverlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pipelines overlay: %w", err)
	}
	return &f, nil
}

// ApplyOverlayFile reads path and merges it into the registry. An empty
// path is a no-op.
func ApplyOverlayFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipelines overlay: %w", err)
	}
	f, err := ParseOverlay(data)
	if err != nil {
		return err
	}
	for key, o := range f.Pipelines {
		if err := core.ApplyOverlay(key, o); err != nil {
			return fmt.Errorf("apply overlay %s: %w", key, err)
		}
	}
	return nil
}
