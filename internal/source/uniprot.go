// Package source provides parsers for upstream biomedical data sources.
package source

import (
	"log/slog"
	"strconv"
)

// UniProtGene is gene information attached to a protein entry.
type UniProtGene struct {
	Name     string
	Synonyms []string
	Locus    string
}

// UniProtOrganism describes the organism of a protein entry.
type UniProtOrganism struct {
	ScientificName string
	CommonName     string
	TaxonID        string
	Lineage        []string
}

// UniProtSequence describes the protein sequence.
type UniProtSequence struct {
	Length  int
	Mass    int
	Version int
}

// UniProtFunction is one FUNCTION annotation.
type UniProtFunction struct {
	Description string
}

// UniProtFeature is one sequence feature annotation.
type UniProtFeature struct {
	Type        string
	Description string
}

// UniProtReference is one literature reference on a protein entry.
type UniProtReference struct {
	Title           string
	Authors         []string
	Journal         string
	PublicationDate string
	PubMedID        string
	DOI             string
}

// UniProtProtein is the typed representation of one UniProt entry.
type UniProtProtein struct {
	PrimaryAccession string
	EntryName        string
	ProteinName      string

	Genes    []UniProtGene
	Organism UniProtOrganism
	Sequence UniProtSequence

	Functions            []UniProtFunction
	SubcellularLocations []string
	Features             []UniProtFeature
	References           []UniProtReference

	// DatabaseReferences maps reference type to ids (e.g. "HGNC" -> [...]).
	DatabaseReferences map[string][]string

	// CommentsByType groups free-text comments by their commentType.
	CommentsByType map[string][]string

	// Raw preserves the original record for audit.
	Raw RawRecord
}

// UniProtParser converts raw UniProt mapping records into UniProtProtein
// values and maintains a cache keyed by accession.
type UniProtParser struct {
	logger *slog.Logger

	proteinCache map[string]*UniProtProtein
}

// NewUniProtParser creates a UniProt parser. A nil logger disables debug output.
func NewUniProtParser(logger *slog.Logger) *UniProtParser {
	return &UniProtParser{
		logger:       logger,
		proteinCache: make(map[string]*UniProtProtein),
	}
}

var uniprotKnownKeys = map[string]bool{
	"primaryAccession":   true,
	"uniProtkbId":        true,
	"proteinDescription": true,
	"genes":              true,
	"organism":           true,
	"sequence":           true,
	"comments":           true,
	"features":           true,
	"references":         true,
	"dbReferences":       true,
	"source":             true,
}

// Parse converts a single raw UniProt record. Returns nil when the record has
// no primary accession.
func (p *UniProtParser) Parse(record RawRecord) *UniProtProtein {
	logUnknownKeys(p.logger, NameUniProt, record, uniprotKnownKeys)

	accession := record.Str("primaryAccession")
	if accession == "" {
		return nil
	}

	entryName := record.Str("uniProtkbId")
	if entryName == "" {
		entryName = accession
	}

	protein := &UniProtProtein{
		PrimaryAccession:     accession,
		EntryName:            entryName,
		ProteinName:          extractProteinName(record),
		Genes:                extractGenes(record),
		Organism:             extractOrganism(record),
		Sequence:             extractSequence(record),
		Functions:            extractFunctions(record),
		SubcellularLocations: extractSubcellularLocations(record),
		Features:             extractFeatures(record),
		References:           extractReferences(record),
		DatabaseReferences:   extractDatabaseReferences(record),
		CommentsByType:       extractCommentsByType(record),
		Raw:                  record,
	}

	return protein
}

// ParseBatch converts multiple raw records, skipping any that fail to parse.
func (p *UniProtParser) ParseBatch(records []RawRecord) []UniProtProtein {
	proteins := make([]UniProtProtein, 0, len(records))

	for _, record := range records {
		if protein := p.Parse(record); protein != nil {
			proteins = append(proteins, *protein)
		}
	}

	for i := range proteins {
		p.proteinCache[proteins[i].PrimaryAccession] = &proteins[i]
	}

	return proteins
}

// Validate checks a parsed protein for structural completeness.
func (p *UniProtParser) Validate(protein UniProtProtein) []string {
	var issues []string

	if protein.PrimaryAccession == "" {
		issues = append(issues, "Missing primary accession")
	}

	if protein.ProteinName == "" {
		issues = append(issues, "Missing protein name")
	}

	if protein.Sequence.Length == 0 {
		issues = append(issues, "Invalid sequence length")
	}

	if protein.Organism.ScientificName == "" {
		issues = append(issues, "Missing organism information")
	}

	return issues
}

// Protein returns a cached protein by accession.
func (p *UniProtParser) Protein(accession string) (*UniProtProtein, bool) {
	protein, ok := p.proteinCache[accession]

	return protein, ok
}

func extractProteinName(record RawRecord) string {
	description := record.Map("proteinDescription")
	if description != nil {
		recommended := description.Map("recommendedName")
		if recommended != nil {
			fullName := recommended.Map("fullName")
			if fullName != nil {
				if value := fullName.Str("value"); value != "" {
					return value
				}
			}
		}
	}

	if entryName := record.Str("uniProtkbId"); entryName != "" {
		return entryName
	}

	return "Unknown Protein"
}

func extractGenes(record RawRecord) []UniProtGene {
	var genes []UniProtGene

	for _, geneRecord := range record.Maps("genes") {
		geneName := geneRecord.Map("geneName")
		if geneName == nil {
			continue
		}

		name := geneName.Str("value")
		if name == "" {
			continue
		}

		gene := UniProtGene{Name: name}

		for _, synonym := range geneRecord.Maps("synonyms") {
			if value := synonym.Str("value"); value != "" {
				gene.Synonyms = append(gene.Synonyms, value)
			}
		}

		genes = append(genes, gene)
	}

	return genes
}

func extractOrganism(record RawRecord) UniProtOrganism {
	organism := record.Map("organism")
	if organism == nil {
		return UniProtOrganism{ScientificName: "Unknown"}
	}

	scientificName := organism.Str("scientificName")
	if scientificName == "" {
		scientificName = "Unknown"
	}

	taxonID := organism.Str("taxonId")
	if taxonID == "" {
		if numeric, ok := organism.Int("taxonId"); ok {
			taxonID = strconv.Itoa(numeric)
		}
	}

	return UniProtOrganism{
		ScientificName: scientificName,
		CommonName:     organism.Str("commonName"),
		TaxonID:        taxonID,
		Lineage:        organism.Strings("lineage"),
	}
}

func extractSequence(record RawRecord) UniProtSequence {
	sequence := record.Map("sequence")
	if sequence == nil {
		return UniProtSequence{Version: 1}
	}

	length, _ := sequence.Int("length")
	mass, _ := sequence.Int("mass")

	version, ok := sequence.Int("version")
	if !ok {
		version = 1
	}

	return UniProtSequence{
		Length:  length,
		Mass:    mass,
		Version: version,
	}
}

func extractFunctions(record RawRecord) []UniProtFunction {
	var functions []UniProtFunction

	for _, comment := range record.Maps("comments") {
		if comment.Str("commentType") != "FUNCTION" {
			continue
		}

		for _, text := range comment.Maps("texts") {
			if value := text.Str("value"); value != "" {
				functions = append(functions, UniProtFunction{Description: value})
			}
		}
	}

	return functions
}

func extractSubcellularLocations(record RawRecord) []string {
	var locations []string

	for _, comment := range record.Maps("comments") {
		if comment.Str("commentType") != "SUBCELLULAR LOCATION" {
			continue
		}

		for _, location := range comment.Maps("subcellularLocations") {
			if inner := location.Map("location"); inner != nil {
				if value := inner.Str("value"); value != "" {
					locations = append(locations, value)
				}
			}
		}
	}

	return locations
}

func extractFeatures(record RawRecord) []UniProtFeature {
	var features []UniProtFeature

	for _, feature := range record.Maps("features") {
		featureType := feature.Str("type")
		if featureType == "" {
			continue
		}

		features = append(features, UniProtFeature{
			Type:        featureType,
			Description: feature.Str("description"),
		})
	}

	return features
}

func extractReferences(record RawRecord) []UniProtReference {
	var references []UniProtReference

	for _, reference := range record.Maps("references") {
		citation := reference.Map("citation")
		if citation == nil {
			continue
		}

		parsed := UniProtReference{
			Title:   citation.Str("title"),
			Authors: citation.Strings("authors"),
			Journal: citation.Str("journal"),
		}

		if date := citation.Map("publicationDate"); date != nil {
			parsed.PublicationDate = date.Str("value")
		}

		// Citation cross-references carry the PubMed id and DOI when present.
		for _, crossRef := range citation.Maps("citationCrossReferences") {
			switch crossRef.Str("database") {
			case "PubMed":
				parsed.PubMedID = crossRef.Str("id")
			case "DOI":
				parsed.DOI = crossRef.Str("id")
			}
		}

		references = append(references, parsed)
	}

	return references
}

func extractDatabaseReferences(record RawRecord) map[string][]string {
	refs := make(map[string][]string)

	for _, reference := range record.Maps("dbReferences") {
		refType := reference.Str("type")
		refID := reference.Str("id")

		if refType == "" || refID == "" {
			continue
		}

		refs[refType] = append(refs[refType], refID)
	}

	return refs
}

func extractCommentsByType(record RawRecord) map[string][]string {
	comments := make(map[string][]string)

	for _, comment := range record.Maps("comments") {
		commentType := comment.Str("commentType")
		if commentType == "" {
			continue
		}

		for _, text := range comment.Maps("texts") {
			if value := text.Str("value"); value != "" {
				comments[commentType] = append(comments[commentType], value)
			}
		}
	}

	return comments
}
