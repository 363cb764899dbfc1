package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DomainSets holds the curated domain allow-lists used by the Exa and Tavily
// strategy variants. These are operational configuration, not invariants:
// editors curate them per deployment.
type DomainSets struct {
	News   []string `yaml:"news"`
	Mixed  []string `yaml:"mixed"`
	Pharma []string `yaml:"pharma"`
}

// DefaultDomainSets returns the compiled-in allow-lists used when no
// domains.yaml is present.
func DefaultDomainSets() DomainSets {
	return DomainSets{
		News: []string{
			"reuters.com", "bloomberg.com", "wsj.com", "ft.com",
			"medicalnewstoday.com", "webmd.com", "medscape.com",
		},
		Mixed: []string{
			"reuters.com", "bloomberg.com",
			"pharmatimes.com", "fiercepharma.com", "biopharmadive.com",
			"medicalnewstoday.com",
		},
		Pharma: []string{
			"pubmed.ncbi.nlm.nih.gov", "clinicaltrials.gov", "fda.gov",
			"pharmatimes.com", "fiercepharma.com", "biopharmadive.com",
			"pharmaceutical-technology.com", "drugdiscoverytoday.com",
		},
	}
}

// LoadDomainSets reads domain allow-lists from a YAML file, falling back to
// the compiled-in defaults for any set the file omits. An empty path returns
// the defaults.
func LoadDomainSets(path string) (DomainSets, error) {
	sets := DefaultDomainSets()
	if path == "" {
		return sets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sets, nil
		}
		return sets, eris.Wrapf(err, "config: read domains file %s", path)
	}

	// The YAML has a top-level "domains" key.
	var wrapper struct {
		Domains DomainSets `yaml:"domains"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return sets, eris.Wrap(err, "config: parse domains file")
	}

	if len(wrapper.Domains.News) > 0 {
		sets.News = wrapper.Domains.News
	}
	if len(wrapper.Domains.Mixed) > 0 {
		sets.Mixed = wrapper.Domains.Mixed
	}
	if len(wrapper.Domains.Pharma) > 0 {
		sets.Pharma = wrapper.Domains.Pharma
	}
	return sets, nil
}
