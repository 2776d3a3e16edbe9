package service

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jjenkins/bobbot/internal/model"
)

// ErrStructure marks a page that does not have the expected board layout.
var ErrStructure = errors.New("unexpected page structure")

const (
	listingRowSelector = "table.basic-list-table tbody tr"
	titleSelector      = "div.board-view-title"
	prevPostSelector   = "li.li-prev a"
	fileLinkSelector   = "ul.board-view-filelist a"
	contentSelector    = "div#boardContents"

	createDateLayout = "2006-01-02"
)

var (
	enforceDatePattern = regexp.MustCompile(`(\d{4})\s*[년./\-]\s*(\d{1,2})\s*[월./\-]\s*(\d{1,2})`)
	bracketStripper    = strings.NewReplacer("[", "", "]", "")
)

// PostParser extracts listing links and post metadata from board pages.
type PostParser struct {
	loc *time.Location
}

// NewPostParser creates a parser that reads dates in loc.
func NewPostParser(loc *time.Location) *PostParser {
	if loc == nil {
		loc = time.Local
	}
	return &PostParser{loc: loc}
}

// FirstPostLink returns the link of the newest post on a board listing.
func (p *PostParser) FirstPostLink(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse listing: %w", err)
	}

	href, ok := doc.Find(listingRowSelector).First().Find("a").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", fmt.Errorf("%w: listing has no post link", ErrStructure)
	}
	return href, nil
}

// ParsePost extracts a RegulationPost from a post page.
func (p *PostParser) ParsePost(body []byte) (*model.RegulationPost, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse post: %w", err)
	}

	titleBlob := doc.Find(titleSelector).First()
	if titleBlob.Length() == 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrStructure, titleSelector)
	}

	post, err := p.parseTitleBlob(titleBlob.Text())
	if err != nil {
		return nil, err
	}

	if href, ok := doc.Find(fileLinkSelector).First().Attr("href"); ok {
		post.FileURL = strings.TrimSpace(href)
	}
	post.EnforceDate = p.parseEnforceDate(doc.Find(contentSelector).First().Text())
	post.NextLink = cleanLink(doc.Find(prevPostSelector).First().AttrOr("href", ""))

	return post, nil
}

// parseTitleBlob splits the title block into category, title and date.
// The block is a column of lines: [category], title, author, YYYY-MM-DD.
// Charter and ordinance posts lack the category line, so one is supplied
// when the block does not open with a bracketed category.
func (p *PostParser) parseTitleBlob(blob string) (*model.RegulationPost, error) {
	var segments []string
	for _, line := range strings.Split(strings.ReplaceAll(blob, "\t", ""), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			segments = append(segments, line)
		}
	}

	// A bracketed first line is the post's own category, even for titles
	// that mention 정관 or 조례.
	if len(segments) > 0 && !strings.HasPrefix(segments[0], "[") {
		text := strings.Join(segments, "\n")
		for _, kw := range []string{model.TypeCharter, model.TypeOrdinance} {
			if strings.Contains(text, kw) {
				if !strings.HasPrefix(text, kw) {
					segments = append([]string{kw}, segments...)
				}
				break
			}
		}
	}

	if len(segments) < 4 {
		return nil, fmt.Errorf("%w: title block has %d lines, want at least 4", ErrStructure, len(segments))
	}

	category := strings.TrimSpace(bracketStripper.Replace(segments[0]))
	title := segments[1]
	if strings.Contains(title, "[내규]") {
		category = model.TypeBylaw
		title = strings.TrimSpace(strings.ReplaceAll(title, "[내규]", ""))
	}
	if !model.IsRegulationType(category) {
		category = ""
	}

	created, err := time.ParseInLocation(createDateLayout, segments[3], p.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad creation date %q", ErrStructure, segments[3])
	}

	return &model.RegulationPost{
		Type:       category,
		Title:      title,
		CreateDate: created,
	}, nil
}

// parseEnforceDate reads the "label: 2024년 3월 1일" value from the post
// body. Only the value of the first labelled field counts; it ends at the
// line break or the next colon. It returns nil when there is none.
func (p *PostParser) parseEnforceDate(content string) *time.Time {
	content = strings.ReplaceAll(content, "：", ":")
	_, value, found := strings.Cut(content, ":")
	if !found {
		return nil
	}
	if end := strings.IndexAny(value, ":\n"); end >= 0 {
		value = value[:end]
	}

	m := enforceDatePattern.FindStringSubmatch(value)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.loc)
	if d.Month() != time.Month(month) || d.Day() != day {
		return nil
	}
	return &d
}

func cleanLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	return href
}
