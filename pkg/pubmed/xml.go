package pubmed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// articleSet mirrors the subset of the PubmedArticleSet schema we consume.
type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Text []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []author `xml:"Author"`
			} `xml:"AuthorList"`
			Journal struct {
				Issue struct {
					PubDate pubDate `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

type author struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// iso returns the PubDate as YYYY-MM-DD, or "" when the record lacks a full
// date (year-only and year-month records are common for journal issues).
func (d pubDate) iso() string {
	year, err := strconv.Atoi(d.Year)
	if err != nil {
		return ""
	}
	month, err := strconv.Atoi(d.Month)
	if err != nil {
		m, ok := monthNumbers[strings.ToLower(d.Month)]
		if !ok {
			return ""
		}
		month = m
	}
	day, err := strconv.Atoi(d.Day)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// parseArticleSet decodes an efetch XML payload into Records.
func parseArticleSet(data []byte) ([]Record, error) {
	var set articleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, eris.Wrap(err, "pubmed: parse efetch XML")
	}

	records := make([]Record, 0, len(set.Articles))
	for _, a := range set.Articles {
		cit := a.Citation
		rec := Record{
			PMID:     cit.PMID,
			Title:    cit.Article.Title,
			Abstract: strings.Join(cit.Article.Abstract.Text, " "),
			Date:     cit.Article.Journal.Issue.PubDate.iso(),
			Authors:  formatAuthors(cit.Article.AuthorList.Authors),
		}
		if rec.PMID != "" {
			rec.URL = "https://pubmed.ncbi.nlm.nih.gov/" + rec.PMID
		}
		records = append(records, rec)
	}
	return records, nil
}

// formatAuthors joins up to three "Forename Lastname" entries, appending
// "et al." when the list is longer.
func formatAuthors(authors []author) string {
	var names []string
	for i, au := range authors {
		if i == 3 {
			break
		}
		name := strings.TrimSpace(au.ForeName + " " + au.LastName)
		if name != "" {
			names = append(names, name)
		}
	}
	joined := strings.Join(names, "; ")
	if len(authors) > 3 && joined != "" {
		joined += " et al."
	}
	return joined
}
