// Package normalize converts parsed source records into canonical entities.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/biolink-io/harvester/internal/source"
)

// PublicationIDType identifies the namespace of a publication's primary identifier.
type PublicationIDType string

const (
	// PublicationIDPubMed is a numeric PubMed identifier.
	PublicationIDPubMed PublicationIDType = "pubmed_id"

	// PublicationIDDOI is a digital object identifier.
	PublicationIDDOI PublicationIDType = "doi"

	// PublicationIDPMC is a PubMed Central identifier.
	PublicationIDPMC PublicationIDType = "pmc_id"

	// PublicationIDOther covers unrecognized identifier layouts.
	PublicationIDOther PublicationIDType = "other"
)

var (
	pubmedIDPattern = regexp.MustCompile(`^\d+$`)
	doiPattern      = regexp.MustCompile(`(?i)^10\.\d{4,9}/[-._;()/:A-Z0-9]+$`)
	pmcIDPattern    = regexp.MustCompile(`(?i)^PMC\d+$`)
	pmcIDStrict     = regexp.MustCompile(`^PMC\d+$`)
)

// Publication is a canonical publication entity.
type Publication struct {
	PrimaryID       string
	IDType          PublicationIDType
	Title           string
	Authors         []string
	Journal         string
	PublicationDate *time.Time
	DOI             string
	PMCID           string
	PubMedID        string
	CrossRefs       map[string][]string
	Source          string
	Confidence      float64
}

// PublicationNormalizer standardizes publication identifiers.
//
// The cache is keyed by primary id and scoped to one pipeline invocation.
type PublicationNormalizer struct {
	cache map[string]*Publication
}

// NewPublicationNormalizer creates a publication normalizer with an empty cache.
func NewPublicationNormalizer() *PublicationNormalizer {
	return &PublicationNormalizer{cache: make(map[string]*Publication)}
}

// FromPubMed builds a canonical publication from a parsed PubMed article.
// Returns nil when the article carries no PubMed id.
func (n *PublicationNormalizer) FromPubMed(article source.PubMedPublication) *Publication {
	if article.PubMedID == "" {
		return nil
	}

	authors := make([]string, 0, len(article.Authors))

	for _, author := range article.Authors {
		if author.LastName == "" {
			continue
		}

		name := author.LastName
		if author.FirstName != "" {
			name += ", " + author.FirstName
		}

		authors = append(authors, name)
	}

	journal := ""
	if article.Journal != nil {
		journal = article.Journal.Title
	}

	crossRefs := map[string][]string{
		"PUBMED": {article.PubMedID},
	}

	if article.DOI != "" {
		crossRefs["DOI"] = []string{article.DOI}
	}

	if article.PMCID != "" {
		crossRefs["PMC"] = []string{article.PMCID}
	}

	publication := &Publication{
		PrimaryID:       article.PubMedID,
		IDType:          PublicationIDPubMed,
		Title:           article.Title,
		Authors:         authors,
		Journal:         journal,
		PublicationDate: article.PublicationDate,
		DOI:             article.DOI,
		PMCID:           article.PMCID,
		PubMedID:        article.PubMedID,
		CrossRefs:       crossRefs,
		Source:          source.NamePubMed,
		Confidence:      0.9,
	}

	n.cache[publication.PrimaryID] = publication

	return publication
}

// FromUniProtReference builds a canonical publication from a protein entry's
// literature reference. Returns nil when the reference carries no identifier
// and no title.
func (n *PublicationNormalizer) FromUniProtReference(reference source.UniProtReference) *Publication {
	primaryID := reference.PubMedID
	idType := PublicationIDPubMed

	if primaryID == "" {
		primaryID = reference.DOI
		idType = PublicationIDDOI
	}

	if primaryID == "" {
		primaryID = reference.Title
		idType = PublicationIDOther
	}

	if primaryID == "" {
		return nil
	}

	crossRefs := map[string][]string{}
	if reference.PubMedID != "" {
		crossRefs["PUBMED"] = []string{reference.PubMedID}
	}

	if reference.DOI != "" {
		crossRefs["DOI"] = []string{reference.DOI}
	}

	publication := &Publication{
		PrimaryID:       primaryID,
		IDType:          idType,
		Title:           reference.Title,
		Authors:         append([]string(nil), reference.Authors...),
		Journal:         reference.Journal,
		PublicationDate: parseReferenceDate(reference.PublicationDate),
		DOI:             reference.DOI,
		PubMedID:        reference.PubMedID,
		CrossRefs:       crossRefs,
		Source:          source.NameUniProt,
		Confidence:      0.8,
	}

	n.cache[publication.PrimaryID] = publication

	return publication
}

// FromRecord builds a canonical publication from a schema-loose record.
// Returns nil when the record carries no identifier.
func (n *PublicationNormalizer) FromRecord(record source.RawRecord, src string) *Publication {
	identifier := firstOf(record, "pubmed_id", "doi", "pmc_id", "id")
	if identifier == "" {
		return nil
	}

	publication := &Publication{
		PrimaryID:  identifier,
		IDType:     IdentifyPublicationID(identifier),
		Title:      record.Str("title"),
		Authors:    record.Strings("authors"),
		Journal:    record.Str("journal"),
		DOI:        record.Str("doi"),
		PMCID:      record.Str("pmc_id"),
		PubMedID:   record.Str("pubmed_id"),
		CrossRefs:  map[string][]string{},
		Source:     src,
		Confidence: 0.6,
	}

	if date := parseReferenceDate(record.Str("publication_date")); date != nil {
		publication.PublicationDate = date
	}

	n.cache[publication.PrimaryID] = publication

	return publication
}

// IdentifyPublicationID classifies a publication identifier. Detection order:
// numeric PubMed id, DOI, PMC id, then OTHER.
func IdentifyPublicationID(identifier string) PublicationIDType {
	switch {
	case pubmedIDPattern.MatchString(identifier):
		return PublicationIDPubMed
	case doiPattern.MatchString(identifier):
		return PublicationIDDOI
	case pmcIDPattern.MatchString(identifier):
		return PublicationIDPMC
	default:
		return PublicationIDOther
	}
}

// Validate checks a canonical publication for structural validity.
func (n *PublicationNormalizer) Validate(publication Publication) []string {
	var issues []string

	if publication.PrimaryID == "" {
		issues = append(issues, "Missing primary ID")
	}

	if publication.DOI != "" && !doiPattern.MatchString(publication.DOI) {
		issues = append(issues, "Invalid DOI format")
	}

	if publication.PMCID != "" && !pmcIDStrict.MatchString(publication.PMCID) {
		issues = append(issues, "Invalid PMC ID format")
	}

	if publication.Confidence < 0 || publication.Confidence > 1 {
		issues = append(issues, "Confidence score out of range [0,1]")
	}

	return issues
}

// ByID returns a cached publication by primary id.
func (n *PublicationNormalizer) ByID(publicationID string) (*Publication, bool) {
	publication, ok := n.cache[publicationID]

	return publication, ok
}

// parseReferenceDate parses the loose date strings carried by literature
// references ("2005", "2005-06", "2005-06-15").
func parseReferenceDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}

	return nil
}
