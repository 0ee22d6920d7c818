package adapters

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bullion/internal/compliance"
	"bullion/pkg/platform/sentinel"
)

type registryFile struct {
	Companies []struct {
		TaxID            string `yaml:"tax_id"`
		Active           bool   `yaml:"active"`
		LegalName        string `yaml:"legal_name"`
		RegisteredOffice string `yaml:"registered_office"`
		Activity         string `yaml:"activity"`
	} `yaml:"companies"`
}

// FileRegistry serves business register records from a YAML snapshot.
type FileRegistry struct {
	companies map[string]compliance.Company
}

func NewRegistry(companies ...compliance.Company) *FileRegistry {
	r := &FileRegistry{companies: make(map[string]compliance.Company, len(companies))}
	for _, c := range companies {
		key := compliance.ValidateTaxID(c.TaxID).Normalized
		if key == "" {
			key = c.TaxID
		}
		r.companies[key] = c
	}
	return r
}

// LoadRegistry reads a registry snapshot. An empty path yields an empty registry.
func LoadRegistry(path string) (*FileRegistry, error) {
	if path == "" {
		return NewRegistry(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read company registry: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse company registry: %w", err)
	}
	companies := make([]compliance.Company, 0, len(file.Companies))
	for _, c := range file.Companies {
		companies = append(companies, compliance.Company{
			TaxID:            c.TaxID,
			Active:           c.Active,
			LegalName:        c.LegalName,
			RegisteredOffice: c.RegisteredOffice,
			Activity:         c.Activity,
		})
	}
	return NewRegistry(companies...), nil
}

func (r *FileRegistry) Lookup(ctx context.Context, taxID string) (compliance.Company, error) {
	if err := ctx.Err(); err != nil {
		return compliance.Company{}, err
	}
	c, ok := r.companies[taxID]
	if !ok {
		return compliance.Company{}, sentinel.ErrNotFound
	}
	return c, nil
}
