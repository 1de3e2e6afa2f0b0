package classifier

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk form of rule extensions:
//
//	brands:
//	  rejuran: medical_devices
//	keywords:
//	  skincare_products: ['\bbalm\b']
//	verbatim:
//	  "cosmetic products": [skincare_products]
type RulesFile struct {
	Brands   map[string]string   `yaml:"brands"`
	Keywords map[string][]string `yaml:"keywords"`
	Verbatim map[string][]string `yaml:"verbatim"`
}

// LoadRulesFile reads a YAML rules file and applies it on top of the classifier's
// current dictionaries.
func (c *Classifier) LoadRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rules file: %w", err)
	}
	return c.ApplyRules(data)
}

// ApplyRules applies YAML-encoded rule extensions.
func (c *Classifier) ApplyRules(data []byte) error {
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parsing rules file: %w", err)
	}

	for brand, name := range rf.Brands {
		cat, err := ParseCategory(name)
		if err != nil {
			return fmt.Errorf("brand %q: %w", brand, err)
		}
		c.AddBrand(brand, cat)
	}
	for name, patterns := range rf.Keywords {
		cat, err := ParseCategory(name)
		if err != nil {
			return fmt.Errorf("keywords: %w", err)
		}
		for _, p := range patterns {
			if err := c.AddKeywordPattern(cat, p); err != nil {
				return err
			}
		}
	}
	for phrase, names := range rf.Verbatim {
		cats := make([]Category, 0, len(names))
		for _, n := range names {
			cat, err := ParseCategory(n)
			if err != nil {
				return fmt.Errorf("verbatim %q: %w", phrase, err)
			}
			cats = append(cats, cat)
		}
		c.AddVerbatimLabel(phrase, cats...)
	}
	return nil
}
