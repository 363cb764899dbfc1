package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Provider identifies an external information source.
type Provider string

const (
	ProviderPubMed  Provider = "pubmed"
	ProviderExa     Provider = "exa"
	ProviderTavily  Provider = "tavily"
	ProviderNewsAPI Provider = "newsapi"
)

// AllProviders lists providers in their canonical fan-out order.
var AllProviders = []Provider{ProviderPubMed, ProviderExa, ProviderTavily, ProviderNewsAPI}

// ParseProvider maps a request string onto a known provider.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(s)
	for _, known := range AllProviders {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// DateOrigin records which extraction tier produced an article's resolved date.
type DateOrigin string

const (
	DateOriginMetadata DateOrigin = "metadata"
	DateOriginModel    DateOrigin = "model"
	DateOriginRegex    DateOrigin = "regex"
	DateOriginNone     DateOrigin = "none"
)

// Article is the unit of work flowing through the pipeline. It is created by a
// provider adapter, annotated by the date and relevance stages, and either
// discarded or returned to the caller. A zero ResolvedDate means no date was
// found; Scored distinguishes "score is 0" from "never analyzed".
type Article struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Content            string   `json:"content"`
	HighlightedContent string   `json:"highlighted_content,omitempty"`
	URL                string   `json:"url"`
	Source             Provider `json:"source"`
	Strategy           string   `json:"strategy"`
	Authors            string   `json:"authors,omitempty"`

	RawDate      string     `json:"raw_date,omitempty"`
	ResolvedDate time.Time  `json:"resolved_date,omitzero"`
	DateOrigin   DateOrigin `json:"date_origin"`

	RelevanceScore       int      `json:"relevance_score"`
	Scored               bool     `json:"-"`
	RelevanceReason      string   `json:"relevance_reason,omitempty"`
	ArticleType          string   `json:"article_type,omitempty"`
	MentionedKeywords    []string `json:"mentioned_keywords,omitempty"`
	PertinentKeywords    []string `json:"pertinent_keywords,omitempty"`
	ClinicalSignificance string   `json:"clinical_significance,omitempty"`
	RegulatoryImpact     string   `json:"regulatory_impact,omitempty"`
	MarketImpact         string   `json:"market_impact,omitempty"`
	Summary              string   `json:"summary,omitempty"`
}

// HasDate reports whether a resolved date was set by the date resolver.
func (a *Article) HasDate() bool {
	return !a.ResolvedDate.IsZero()
}

// Fingerprint derives a stable article ID from its URL, falling back to
// title+source when the provider omitted the URL.
func Fingerprint(url, title string, source Provider) string {
	h := sha256.New()
	if url != "" {
		h.Write([]byte(url))
	} else {
		h.Write([]byte(title))
		h.Write([]byte("|"))
		h.Write([]byte(source))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
