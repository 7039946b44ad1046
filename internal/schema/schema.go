// Package schema holds the single mapping table between the external tourism
// sources and the engine: the counts column names and the TopoJSON object and
// property names. Every component that reads a source takes its names from here.
package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Mapping is the complete external schema.
type Mapping struct {
	Counts    Counts    `yaml:"counts" json:"counts" validate:"required"`
	Geography Geography `yaml:"geography" json:"geography" validate:"required"`
}

// Counts names the columns of the tourism counts table.
type Counts struct {
	Year         string `yaml:"year" json:"year" envconfig:"YEAR" default:"year" validate:"required"`
	DivisionID   string `yaml:"division_id" json:"division_id" envconfig:"DIVISION_ID" default:"correspondence_code_mod" validate:"required"`
	Region       string `yaml:"region" json:"region" envconfig:"REGION" default:"region" validate:"required"`
	Province     string `yaml:"province" json:"province" envconfig:"PROVINCE" default:"province" validate:"required"`
	Municipality string `yaml:"municipality" json:"municipality" envconfig:"MUNICIPALITY" default:"muni_city" validate:"required"`
	Domestic     string `yaml:"domestic" json:"domestic" envconfig:"DOMESTIC" default:"domestic_travelers" validate:"required"`
	Foreign      string `yaml:"foreign" json:"foreign" envconfig:"FOREIGN" default:"foreign_travelers" validate:"required"`
	Overseas     string `yaml:"overseas" json:"overseas" envconfig:"OVERSEAS" default:"overseas_filipinos" validate:"required"`
}

// Geography names the TopoJSON objects and identifier properties.
type Geography struct {
	LandObject             string `yaml:"land_object" json:"land_object" envconfig:"LAND_OBJECT" default:"land" validate:"required"`
	ProvincesObject        string `yaml:"provinces_object" json:"provinces_object" envconfig:"PROVINCES_OBJECT" default:"provinces" validate:"required"`
	ProvinceIDProperty     string `yaml:"province_id_property" json:"province_id_property" envconfig:"PROVINCE_ID_PROPERTY" default:"CC_1" validate:"required"`
	MunicipalitiesObject   string `yaml:"municipalities_object" json:"municipalities_object" envconfig:"MUNICIPALITIES_OBJECT" default:"municipalities" validate:"required"`
	MunicipalityIDProperty string `yaml:"municipality_id_property" json:"municipality_id_property" envconfig:"MUNICIPALITY_ID_PROPERTY" default:"CC_2_MOD" validate:"required"`

	// ParentProvinceProperty links a municipality to its province. Optional.
	ParentProvinceProperty string `yaml:"parent_province_property" json:"parent_province_property" envconfig:"PARENT_PROVINCE_PROPERTY" default:"CC_1"`
}

// Default returns the mapping of the published Philippine tourism dataset.
func Default() Mapping {
	return Mapping{
		Counts: Counts{
			Year:         "year",
			DivisionID:   "correspondence_code_mod",
			Region:       "region",
			Province:     "province",
			Municipality: "muni_city",
			Domestic:     "domestic_travelers",
			Foreign:      "foreign_travelers",
			Overseas:     "overseas_filipinos",
		},
		Geography: Geography{
			LandObject:             "land",
			ProvincesObject:        "provinces",
			ProvinceIDProperty:     "CC_1",
			MunicipalitiesObject:   "municipalities",
			MunicipalityIDProperty: "CC_2_MOD",
			ParentProvinceProperty: "CC_1",
		},
	}
}

// Required returns the count columns every row must carry, in table order.
func (c Counts) Required() []string {
	return []string{c.Year, c.DivisionID, c.Region, c.Province, c.Municipality, c.Domestic, c.Foreign, c.Overseas}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that every mandatory name is set and that the count columns are distinct.
func (m Mapping) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid schema mapping: %w", err)
	}
	seen := make(map[string]struct{}, 8)
	for _, col := range m.Counts.Required() {
		if _, dup := seen[col]; dup {
			return fmt.Errorf("invalid schema mapping: column %q mapped twice", col)
		}
		seen[col] = struct{}{}
	}
	return nil
}
