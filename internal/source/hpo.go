// Package source provides parsers for upstream biomedical data sources.
package source

import (
	"log/slog"
	"strings"
)

// HPOTermType categorizes HPO ontology terms by branch.
type HPOTermType string

const (
	// HPOTypePhenotypicAbnormality is the main phenotype branch.
	HPOTypePhenotypicAbnormality HPOTermType = "Phenotypic abnormality"

	// HPOTypeClinicalCourse covers onset/progression terms.
	HPOTypeClinicalCourse HPOTermType = "Clinical course"

	// HPOTypeClinicalModifier covers severity/modifier terms.
	HPOTypeClinicalModifier HPOTermType = "Clinical modifier"

	// HPOTypeFrequency covers frequency qualifier terms.
	HPOTypeFrequency HPOTermType = "Frequency"

	// HPOTypeModeOfInheritance covers inheritance pattern terms.
	HPOTypeModeOfInheritance HPOTermType = "Mode of inheritance"

	// HPOTypeOnset covers onset terms.
	HPOTypeOnset HPOTermType = "Onset"

	// HPOTypeOther covers everything else.
	HPOTypeOther HPOTermType = "Other"
)

// HPORelationship links a term to a related term.
type HPORelationship struct {
	TermID           string
	RelationshipType string
}

// HPOTerm is the typed representation of one HPO ontology term.
type HPOTerm struct {
	HPOID      string
	Name       string
	Definition string
	Synonyms   []string
	TermType   HPOTermType

	// Hierarchical relationships, populated by BuildHierarchy.
	Parents  []HPORelationship
	Children []HPORelationship

	Comment string
	Xrefs   []string

	IsObsolete bool
	ReplacedBy string

	// Raw preserves the original record for audit.
	Raw RawRecord
}

// HPOParser converts raw HPO line records into HPOTerm values and maintains
// a term cache for hierarchy traversal.
type HPOParser struct {
	logger *slog.Logger

	// termCache indexes parsed terms by HPO id for related-term lookups.
	termCache map[string]*HPOTerm
}

// NewHPOParser creates an HPO parser. A nil logger disables debug output.
func NewHPOParser(logger *slog.Logger) *HPOParser {
	return &HPOParser{
		logger:    logger,
		termCache: make(map[string]*HPOTerm),
	}
}

var hpoKnownKeys = map[string]bool{
	"hpo_id":      true,
	"name":        true,
	"definition":  true,
	"synonyms":    true,
	"comment":     true,
	"xrefs":       true,
	"is_obsolete": true,
	"replaced_by": true,
	"source":      true,
}

// Parse converts a single raw HPO record. Returns nil when the record lacks
// an identifier or a name.
func (p *HPOParser) Parse(record RawRecord) *HPOTerm {
	logUnknownKeys(p.logger, NameHPO, record, hpoKnownKeys)

	hpoID := record.Str("hpo_id")
	name := record.Str("name")

	if hpoID == "" || name == "" {
		return nil
	}

	return &HPOTerm{
		HPOID:      hpoID,
		Name:       name,
		Definition: record.Str("definition"),
		Synonyms:   record.Strings("synonyms"),
		TermType:   inferTermType(name),
		Comment:    record.Str("comment"),
		Xrefs:      record.Strings("xrefs"),
		IsObsolete: record.Bool("is_obsolete"),
		ReplacedBy: record.Str("replaced_by"),
		Raw:        record,
	}
}

// ParseBatch converts multiple raw records, skipping any that fail to parse.
// Parsed terms are cached by id for hierarchy traversal.
func (p *HPOParser) ParseBatch(records []RawRecord) []HPOTerm {
	terms := make([]HPOTerm, 0, len(records))

	for _, record := range records {
		if term := p.Parse(record); term != nil {
			terms = append(terms, *term)
		}
	}

	// Index after the append loop so cache pointers survive reallocation.
	for i := range terms {
		p.termCache[terms[i].HPOID] = &terms[i]
	}

	return terms
}

// Validate checks a parsed term for structural completeness.
func (p *HPOParser) Validate(term HPOTerm) []string {
	var issues []string

	if term.HPOID == "" {
		issues = append(issues, "Missing HPO ID")
	}

	if term.Name == "" {
		issues = append(issues, "Missing term name")
	}

	if term.HPOID != "" && !strings.HasPrefix(term.HPOID, "HP:") {
		issues = append(issues, "Invalid HPO ID format (should start with HP:)")
	}

	if term.IsObsolete {
		issues = append(issues, "Term is marked as obsolete")
	}

	return issues
}

// BuildHierarchy links phenotypic-abnormality terms under the first such term
// seen, returning the terms indexed by id. Line records do not carry is_a
// edges, so this recovers a minimal one-level hierarchy.
func (p *HPOParser) BuildHierarchy(terms []HPOTerm) map[string]*HPOTerm {
	indexed := make(map[string]*HPOTerm, len(terms))

	for i := range terms {
		indexed[terms[i].HPOID] = &terms[i]
	}

	var root *HPOTerm

	for i := range terms {
		if terms[i].TermType != HPOTypePhenotypicAbnormality {
			continue
		}

		if root == nil {
			root = &terms[i]

			continue
		}

		terms[i].Parents = append(terms[i].Parents, HPORelationship{
			TermID:           root.HPOID,
			RelationshipType: "is_a",
		})
		root.Children = append(root.Children, HPORelationship{
			TermID:           terms[i].HPOID,
			RelationshipType: "has_child",
		})
	}

	return indexed
}

// FindRelatedTerms walks cached term relationships from termID up to maxDepth
// hops, following "is_a" edges towards parents or "has_child" edges towards
// children.
func (p *HPOParser) FindRelatedTerms(termID, relationshipType string, maxDepth int) []string {
	term, ok := p.termCache[termID]
	if !ok {
		return nil
	}

	var related []string

	visited := map[string]bool{}

	var traverse func(current *HPOTerm, depth int)
	traverse = func(current *HPOTerm, depth int) {
		if depth >= maxDepth || visited[current.HPOID] {
			return
		}

		visited[current.HPOID] = true

		var edges []HPORelationship
		if relationshipType == "is_a" {
			edges = current.Parents
		} else {
			edges = current.Children
		}

		for _, edge := range edges {
			if visited[edge.TermID] {
				continue
			}

			related = append(related, edge.TermID)

			if next, ok := p.termCache[edge.TermID]; ok {
				traverse(next, depth+1)
			}
		}
	}

	traverse(term, 0)

	return related
}

// Term returns a cached term by id.
func (p *HPOParser) Term(termID string) (*HPOTerm, bool) {
	term, ok := p.termCache[termID]

	return term, ok
}

func inferTermType(name string) HPOTermType {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "abnormality"):
		return HPOTypePhenotypicAbnormality
	case strings.Contains(lower, "course"):
		return HPOTypeClinicalCourse
	case strings.Contains(lower, "modifier"):
		return HPOTypeClinicalModifier
	case strings.Contains(lower, "frequency"):
		return HPOTypeFrequency
	case strings.Contains(lower, "inherit"):
		return HPOTypeModeOfInheritance
	case strings.Contains(lower, "onset"):
		return HPOTypeOnset
	default:
		return HPOTypeOther
	}
}
