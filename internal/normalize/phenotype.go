// Package normalize converts parsed source records into canonical entities.
package normalize

import (
	"regexp"
	"strings"

	"github.com/biolink-io/harvester/internal/source"
)

// PhenotypeIDType identifies the namespace of a phenotype's primary identifier.
type PhenotypeIDType string

const (
	// PhenotypeIDHPO is a Human Phenotype Ontology identifier.
	PhenotypeIDHPO PhenotypeIDType = "hpo_id"

	// PhenotypeIDOMIM is an OMIM identifier.
	PhenotypeIDOMIM PhenotypeIDType = "omim_id"

	// PhenotypeIDOrpha is an Orphanet identifier.
	PhenotypeIDOrpha PhenotypeIDType = "orpha_id"

	// PhenotypeIDMondo is a MONDO identifier.
	PhenotypeIDMondo PhenotypeIDType = "mondo_id"

	// PhenotypeIDOther covers free-text phenotype names.
	PhenotypeIDOther PhenotypeIDType = "other"
)

var (
	hpoIDPattern   = regexp.MustCompile(`^HP:\d+$`)
	omimIDPattern  = regexp.MustCompile(`^\d+$`)
	orphaIDPattern = regexp.MustCompile(`^ORPHA:\d+$`)
	mondoIDPattern = regexp.MustCompile(`^MONDO:\d+$`)
)

// hpoCategories maps root HPO branch terms to category names.
var hpoCategories = map[string]string{
	"HP:0000118": "Phenotypic abnormality",
	"HP:0000005": "Mode of inheritance",
	"HP:0000001": "All",
}

// Phenotype is a canonical phenotype entity.
type Phenotype struct {
	PrimaryID  string
	IDType     PhenotypeIDType
	Name       string
	Definition string
	Synonyms   []string
	Category   string
	CrossRefs  map[string][]string
	Source     string
	Confidence float64
}

// PhenotypeNormalizer standardizes phenotype terms and identifiers.
//
// The cache is keyed by primary id and scoped to one pipeline invocation.
type PhenotypeNormalizer struct {
	cache map[string]*Phenotype
}

// NewPhenotypeNormalizer creates a phenotype normalizer with an empty cache.
func NewPhenotypeNormalizer() *PhenotypeNormalizer {
	return &PhenotypeNormalizer{cache: make(map[string]*Phenotype)}
}

// FromHPO builds a canonical phenotype from a parsed HPO term.
// Returns nil when the term lacks an id or name, or the id is malformed.
func (n *PhenotypeNormalizer) FromHPO(term source.HPOTerm) *Phenotype {
	if term.HPOID == "" || term.Name == "" {
		return nil
	}

	if !hpoIDPattern.MatchString(term.HPOID) {
		return nil
	}

	phenotype := &Phenotype{
		PrimaryID:  term.HPOID,
		IDType:     PhenotypeIDHPO,
		Name:       term.Name,
		Definition: term.Definition,
		Synonyms:   append([]string(nil), term.Synonyms...),
		Category:   hpoCategories[term.HPOID],
		CrossRefs: map[string][]string{
			"HPO":  {term.HPOID},
			"NAME": {term.Name},
		},
		Source:     source.NameHPO,
		Confidence: 0.95,
	}

	n.cache[phenotype.PrimaryID] = phenotype

	return phenotype
}

// FromClinVarName builds a canonical phenotype from a ClinVar condition name.
// ClinVar conditions have no standardized ids, so the trimmed name is the
// primary id. Returns nil for empty names.
func (n *PhenotypeNormalizer) FromClinVarName(name string) *Phenotype {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	crossRefs := map[string][]string{}
	if hints := hpoHints(name); len(hints) > 0 {
		crossRefs["HPO"] = hints
	}

	phenotype := &Phenotype{
		PrimaryID:  name,
		IDType:     PhenotypeIDOther,
		Name:       name,
		CrossRefs:  crossRefs,
		Source:     source.NameClinVar,
		Confidence: 0.7,
	}

	n.cache[phenotype.PrimaryID] = phenotype

	return phenotype
}

// FromRecord builds a canonical phenotype from a schema-loose record.
// Returns nil when the record has neither a name nor an id.
func (n *PhenotypeNormalizer) FromRecord(record source.RawRecord, src string) *Phenotype {
	phenotypeID := record.Str("id")
	if phenotypeID == "" {
		phenotypeID = record.Str("phenotype_id")
	}

	name := record.Str("name")
	if name == "" {
		name = record.Str("term")
	}

	definition := record.Str("definition")
	if definition == "" {
		definition = record.Str("description")
	}

	if name == "" && phenotypeID == "" {
		return nil
	}

	phenotype := &Phenotype{
		Definition: definition,
		Synonyms:   record.Strings("synonyms"),
		CrossRefs:  map[string][]string{},
		Source:     src,
		Confidence: 0.5,
	}

	if phenotypeID != "" {
		phenotype.PrimaryID = phenotypeID
		phenotype.IDType = identifyPhenotypeType(phenotypeID)
	} else {
		phenotype.PrimaryID = name
		phenotype.IDType = PhenotypeIDOther
	}

	if name != "" {
		phenotype.Name = name
	} else {
		phenotype.Name = "Unknown"
	}

	n.cache[phenotype.PrimaryID] = phenotype

	return phenotype
}

// NormalizeName capitalizes each word and expands common clinical
// abbreviations.
func (n *PhenotypeNormalizer) NormalizeName(name string) string {
	if name == "" {
		return name
	}

	words := strings.Fields(strings.TrimSpace(name))
	for i, word := range words {
		switch strings.ToUpper(word) {
		case "ID":
			words[i] = "Intellectual Disability"
		case "ASD":
			words[i] = "Autism Spectrum Disorder"
		default:
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}

	return strings.Join(words, " ")
}

// Merge combines multiple records for the same phenotype into one.
func (n *PhenotypeNormalizer) Merge(phenotypes []Phenotype) (Phenotype, error) {
	if len(phenotypes) == 0 {
		return Phenotype{}, ErrNothingToMerge
	}

	if len(phenotypes) == 1 {
		return phenotypes[0], nil
	}

	base := phenotypes[0]
	for _, phenotype := range phenotypes[1:] {
		if phenotype.Confidence > base.Confidence {
			base = phenotype
		}
	}

	refSets := make([]map[string][]string, 0, len(phenotypes))
	synonymSets := make([][]string, 0, len(phenotypes))

	for _, phenotype := range phenotypes {
		refSets = append(refSets, phenotype.CrossRefs)
		synonymSets = append(synonymSets, phenotype.Synonyms)
	}

	merged := base
	merged.CrossRefs = mergeCrossRefs(refSets)
	merged.Synonyms = unionStrings(synonymSets)
	merged.Source = SourceMerged
	merged.Confidence = capConfidence(base.Confidence + mergeConfidenceBoost)

	return merged, nil
}

// Validate checks a canonical phenotype for structural validity.
func (n *PhenotypeNormalizer) Validate(phenotype Phenotype) []string {
	var issues []string

	if phenotype.PrimaryID == "" {
		issues = append(issues, "Missing primary ID")
	}

	if phenotype.Name == "" {
		issues = append(issues, "Missing phenotype name")
	}

	if phenotype.IDType == PhenotypeIDHPO && !hpoIDPattern.MatchString(phenotype.PrimaryID) {
		issues = append(issues, "Invalid HPO ID format")
	}

	if phenotype.Confidence < 0 || phenotype.Confidence > 1 {
		issues = append(issues, "Confidence score out of range [0,1]")
	}

	return issues
}

// ByID returns a cached phenotype by primary id.
func (n *PhenotypeNormalizer) ByID(phenotypeID string) (*Phenotype, bool) {
	phenotype, ok := n.cache[phenotypeID]

	return phenotype, ok
}

// ByName returns a cached phenotype by case-insensitive normalized name.
func (n *PhenotypeNormalizer) ByName(name string) (*Phenotype, bool) {
	normalized := strings.ToLower(n.NormalizeName(name))

	for _, phenotype := range n.cache {
		if strings.ToLower(phenotype.Name) == normalized {
			return phenotype, true
		}
	}

	return nil, false
}

func identifyPhenotypeType(phenotypeID string) PhenotypeIDType {
	switch {
	case hpoIDPattern.MatchString(phenotypeID):
		return PhenotypeIDHPO
	case omimIDPattern.MatchString(phenotypeID):
		return PhenotypeIDOMIM
	case orphaIDPattern.MatchString(phenotypeID):
		return PhenotypeIDOrpha
	case mondoIDPattern.MatchString(phenotypeID):
		return PhenotypeIDMondo
	default:
		return PhenotypeIDOther
	}
}

// hpoHints maps well-known condition names to HPO terms. Proper ontology
// mapping belongs to a terminology service; these cover the common cases the
// ClinVar feed produces.
func hpoHints(name string) []string {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "intellectual disability"):
		return []string{"HP:0001249"}
	case strings.Contains(lower, "autism"):
		return []string{"HP:0000729"}
	case strings.Contains(lower, "developmental delay"):
		return []string{"HP:0001263"}
	}

	return nil
}
