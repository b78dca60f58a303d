package app

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/opendatabs/metasync/pkg/errors"
)

// Profile describes one family's sync run: which catalog scheme it
// targets, which source dataset feeds it, and where its assets live.
type Profile struct {
	// Family selects the entity family: org-units, datasets,
	// dataset-compositions, or legal-references.
	Family string `yaml:"family"`

	// Scheme is the catalog scheme the family's assets belong to.
	Scheme string `yaml:"scheme"`

	// RootPath is the collection path the family's assets live under.
	RootPath string `yaml:"root_path"`

	// SourceDataset is the portal dataset ID feeding the family.
	// Only org-units use this; the other families read fixed endpoints.
	SourceDataset string `yaml:"source_dataset,omitempty"`

	// Mapping overrides the default mapping file name.
	Mapping string `yaml:"mapping,omitempty"`

	// Pacing overrides the global inter-call delay.
	Pacing time.Duration `yaml:"pacing,omitempty"`

	// CreateStatus overrides the status new assets are created with.
	CreateStatus string `yaml:"create_status,omitempty"`
}

// Profiles is the profile file's top-level structure.
type Profiles struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads and validates a YAML profile file.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	for _, p := range profiles.Profiles {
		if p.Family == "" {
			return nil, errors.NewConfigError("profiles", "profile without family", nil)
		}
		if p.Scheme == "" {
			return nil, errors.NewConfigError("profiles", "profile "+p.Family+" without scheme", nil)
		}
	}
	return &profiles, nil
}

// Find returns the profile for a family.
func (p *Profiles) Find(family string) (Profile, bool) {
	for _, profile := range p.Profiles {
		if profile.Family == family {
			return profile, true
		}
	}
	return Profile{}, false
}
