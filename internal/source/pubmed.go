// Package source provides parsers for upstream biomedical data sources.
package source

import (
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// PubMedAuthor is one author of a publication.
type PubMedAuthor struct {
	LastName    string
	FirstName   string
	Initials    string
	Affiliation string
}

// PubMedJournal carries journal citation details.
type PubMedJournal struct {
	Title           string
	ISOAbbreviation string
	ISSN            string
	Volume          string
	Issue           string
	Pages           string
}

// PubMedPublication is the typed representation of one PubMed article record.
type PubMedPublication struct {
	PubMedID string
	Title    string
	Abstract string

	Authors []PubMedAuthor
	Journal *PubMedJournal

	PublicationDate  *time.Time
	PublicationTypes []string
	Keywords         []string

	DOI      string
	PMCID    string
	Language string
	Country  string

	// RawXML preserves the original payload for audit.
	RawXML string
}

// PubMedParser converts raw PubMed records into PubMedPublication values.
//
// Raw records carry a "pubmed_id" and the article XML under "raw_xml".
type PubMedParser struct {
	logger *slog.Logger
}

// NewPubMedParser creates a PubMed parser. A nil logger disables debug output.
func NewPubMedParser(logger *slog.Logger) *PubMedParser {
	return &PubMedParser{logger: logger}
}

var pubmedKnownKeys = map[string]bool{
	"pubmed_id": true,
	"raw_xml":   true,
	"source":    true,
}

// Parse converts a single raw PubMed record. Returns nil when the record is
// missing its identity or the XML payload cannot be decoded.
func (p *PubMedParser) Parse(record RawRecord) *PubMedPublication {
	logUnknownKeys(p.logger, NamePubMed, record, pubmedKnownKeys)

	pubmedID := record.Str("pubmed_id")
	rawXML := record.Str("raw_xml")

	if pubmedID == "" || rawXML == "" {
		return nil
	}

	publication := &PubMedPublication{
		PubMedID: pubmedID,
		Title:    "Unknown Title",
		RawXML:   rawXML,
	}

	if err := p.extract(rawXML, publication); err != nil {
		if p.logger != nil {
			p.logger.Debug("failed to parse pubmed record", "pubmed_id", pubmedID, "error", err)
		}

		return nil
	}

	return publication
}

// ParseBatch converts multiple raw records, skipping any that fail to parse.
func (p *PubMedParser) ParseBatch(records []RawRecord) []PubMedPublication {
	publications := make([]PubMedPublication, 0, len(records))

	for _, record := range records {
		if publication := p.Parse(record); publication != nil {
			publications = append(publications, *publication)
		}
	}

	return publications
}

// Validate checks a parsed publication for structural completeness.
func (p *PubMedParser) Validate(publication PubMedPublication) []string {
	var issues []string

	if publication.PubMedID == "" {
		issues = append(issues, "Missing PubMed ID")
	}

	if publication.Title == "" {
		issues = append(issues, "Missing publication title")
	}

	if len(publication.Authors) == 0 {
		issues = append(issues, "No authors found")
	}

	return issues
}

// pubmedWalker accumulates state while streaming through an article payload.
type pubmedWalker struct {
	publication *PubMedPublication

	text strings.Builder

	currentAuthor  *PubMedAuthor
	journal        PubMedJournal
	journalSeen    bool
	abstractParts  []string
	abstractLabel  string
	dateYear       string
	dateMonth      string
	dateDay        string
	articleIDType  string
	inPubDate      bool
	inArticleIDs   bool
	inAuthorList   bool
	inJournal      bool
	inAbstract     bool
	inMeshHeading  bool
	inKeywordList  bool
	titleCaptured  bool
	pmidCaptured   bool
	captureCurrent bool
	captureName    string
}

// extract walks the article XML and fills the typed record.
func (p *PubMedParser) extract(rawXML string, publication *PubMedPublication) error {
	decoder := xml.NewDecoder(strings.NewReader(rawXML))
	walker := &pubmedWalker{publication: publication}

	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return err
		}

		switch element := token.(type) {
		case xml.StartElement:
			walker.start(element)
		case xml.CharData:
			if walker.captureCurrent {
				walker.text.Write(element)
			}
		case xml.EndElement:
			walker.end(element)
		}
	}

	walker.finish()

	return nil
}

func (w *pubmedWalker) start(element xml.StartElement) {
	name := element.Name.Local

	switch name {
	case "PMID":
		if !w.pmidCaptured {
			w.capture(name)
		}
	case "ArticleTitle", "BookTitle":
		if !w.titleCaptured {
			w.capture(name)
		}
	case "Abstract":
		w.inAbstract = true
	case "AbstractText":
		if w.inAbstract {
			w.abstractLabel = xmlAttr(element, "Label")
			w.capture(name)
		}
	case "AuthorList":
		w.inAuthorList = true
	case "Author":
		if w.inAuthorList {
			w.currentAuthor = &PubMedAuthor{}
		}
	case "LastName", "ForeName", "Initials", "Affiliation":
		if w.currentAuthor != nil {
			w.capture(name)
		}
	case "Journal":
		w.inJournal = true
	case "Title", "ISOAbbreviation", "ISSN", "Volume", "Issue":
		if w.inJournal {
			w.capture(name)
		}
	case "MedlinePgn":
		// Pagination lives outside the Journal element.
		w.capture(name)
	case "PubDate":
		if !w.inPubDate && w.dateYear == "" {
			w.inPubDate = true
		}
	case "Year", "Month", "Day":
		if w.inPubDate {
			w.capture(name)
		}
	case "PublicationType", "Keyword", "Language", "Country":
		w.capture(name)
	case "KeywordList":
		w.inKeywordList = true
	case "MeshHeading":
		w.inMeshHeading = true
	case "DescriptorName":
		if w.inMeshHeading {
			w.capture(name)
		}
	case "ArticleIdList":
		w.inArticleIDs = true
	case "ArticleId":
		if w.inArticleIDs {
			w.articleIDType = xmlAttr(element, "IdType")
			w.capture(name)
		}
	}
}

func (w *pubmedWalker) end(element xml.EndElement) {
	text := strings.TrimSpace(w.text.String())

	switch element.Name.Local {
	case "PMID":
		if w.captureCurrent && !w.pmidCaptured && text != "" {
			w.pmidCaptured = true
		}
	case "ArticleTitle", "BookTitle":
		if w.captureCurrent && !w.titleCaptured && text != "" {
			w.publication.Title = text
			w.titleCaptured = true
		}
	case "Abstract":
		w.inAbstract = false
	case "AbstractText":
		if w.captureCurrent && text != "" {
			if w.abstractLabel != "" {
				w.abstractParts = append(w.abstractParts, w.abstractLabel+": "+text)
			} else {
				w.abstractParts = append(w.abstractParts, text)
			}
		}

		w.abstractLabel = ""
	case "AuthorList":
		w.inAuthorList = false
	case "Author":
		if w.currentAuthor != nil {
			w.publication.Authors = append(w.publication.Authors, *w.currentAuthor)
			w.currentAuthor = nil
		}
	case "LastName":
		if w.currentAuthor != nil {
			w.currentAuthor.LastName = text
		}
	case "ForeName":
		if w.currentAuthor != nil {
			w.currentAuthor.FirstName = text
		}
	case "Initials":
		if w.currentAuthor != nil {
			w.currentAuthor.Initials = text
		}
	case "Affiliation":
		if w.currentAuthor != nil {
			w.currentAuthor.Affiliation = text
		}
	case "Journal":
		w.inJournal = false
	case "Title":
		if w.inJournal {
			w.journal.Title = text
			w.journalSeen = true
		}
	case "ISOAbbreviation":
		if w.inJournal {
			w.journal.ISOAbbreviation = text
			w.journalSeen = true
		}
	case "ISSN":
		if w.inJournal {
			w.journal.ISSN = text
			w.journalSeen = true
		}
	case "Volume":
		if w.inJournal {
			w.journal.Volume = text
			w.journalSeen = true
		}
	case "Issue":
		if w.inJournal {
			w.journal.Issue = text
			w.journalSeen = true
		}
	case "MedlinePgn":
		if w.captureCurrent && text != "" {
			w.journal.Pages = text
			w.journalSeen = true
		}
	case "PubDate":
		w.inPubDate = false
	case "Year":
		if w.inPubDate {
			w.dateYear = text
		}
	case "Month":
		if w.inPubDate {
			w.dateMonth = text
		}
	case "Day":
		if w.inPubDate {
			w.dateDay = text
		}
	case "PublicationType":
		if text != "" {
			w.publication.PublicationTypes = append(w.publication.PublicationTypes, text)
		}
	case "KeywordList":
		w.inKeywordList = false
	case "Keyword":
		if w.inKeywordList && text != "" {
			w.publication.Keywords = append(w.publication.Keywords, text)
		}
	case "MeshHeading":
		w.inMeshHeading = false
	case "DescriptorName":
		if w.inMeshHeading && text != "" {
			w.publication.Keywords = append(w.publication.Keywords, text)
		}
	case "ArticleIdList":
		w.inArticleIDs = false
	case "ArticleId":
		switch w.articleIDType {
		case "doi":
			if w.publication.DOI == "" {
				w.publication.DOI = text
			}
		case "pmc":
			if w.publication.PMCID == "" {
				w.publication.PMCID = text
			}
		}

		w.articleIDType = ""
	case "Language":
		if w.publication.Language == "" && !w.inJournal {
			w.publication.Language = text
		}
	case "Country":
		if w.publication.Country == "" {
			w.publication.Country = text
		}
	}

	// Only the element that started a capture ends it; inner markup (e.g.
	// italics inside a title) keeps the text accumulating.
	if element.Name.Local == w.captureName {
		w.captureCurrent = false
		w.captureName = ""
		w.text.Reset()
	}
}

func (w *pubmedWalker) capture(name string) {
	w.captureCurrent = true
	w.captureName = name
	w.text.Reset()
}

func (w *pubmedWalker) finish() {
	if len(w.abstractParts) > 0 {
		w.publication.Abstract = strings.Join(w.abstractParts, " ")
	}

	if w.journalSeen {
		journal := w.journal
		w.publication.Journal = &journal
	}

	if w.dateYear != "" {
		year, err := strconv.Atoi(w.dateYear)
		if err == nil {
			month := monthNumber(w.dateMonth)

			day := 1
			if parsed, err := strconv.Atoi(w.dateDay); err == nil {
				day = parsed
			}

			date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			w.publication.PublicationDate = &date
		}
	}
}

// monthNumber converts a PubDate month (name, abbreviation, or number) to a
// month number, defaulting to January.
func monthNumber(month string) int {
	month = strings.TrimSpace(month)
	if month == "" {
		return 1
	}

	if parsed, err := strconv.Atoi(month); err == nil && parsed >= 1 && parsed <= 12 {
		return parsed
	}

	months := map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}

	lower := strings.ToLower(month)
	if len(lower) >= 3 {
		if number, ok := months[lower[:3]]; ok {
			return number
		}
	}

	return 1
}
