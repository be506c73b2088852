package sources

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mfg-agent/mfgagent/internal/webfetch"
	"github.com/mfg-agent/mfgagent/models"
)

// Directory scrapes one B2B manufacturer directory. The listing markup
// differs per site, so each instance carries its own selectors; when they
// match nothing the page text is handed over as a single unstructured
// candidate for the extraction stage to mine.
type Directory struct {
	tag      string
	name     string
	buildURL func(query string) string
	cardSel  string
	nameSel  string
	locSel   string
	fetcher  webfetch.Fetcher
	maxItems int
}

func (d *Directory) Tag() string { return d.tag }

func (d *Directory) Fetch(ctx context.Context, product, location string) ([]models.RawCandidate, error) {
	res, err := d.fetcher.Fetch(ctx, d.buildURL(product))
	if err != nil {
		return nil, err
	}
	if res.HTML == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return nil, err
	}

	var out []models.RawCandidate
	doc.Find(d.cardSel).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := strings.TrimSpace(card.Find(d.nameSel).First().Text())
		if name == "" {
			return true
		}
		loc := strings.TrimSpace(card.Find(d.locSel).First().Text())
		if loc == "" {
			loc = location
		}
		website, _ := card.Find("a[href]").First().Attr("href")
		cardText := card.Text()
		out = append(out, models.RawCandidate{
			Name:        name,
			Location:    loc,
			Website:     website,
			Contact:     contactFrom(cardText),
			Description: collapse(cardText, 400),
			Source:      d.tag,
		})
		return len(out) < d.maxItems
	})

	// unparseable listing: strip chrome and hand the raw page text to the
	// extraction stage
	if len(out) == 0 {
		doc.Find("script, style, nav, footer, header").Remove()
		text := collapse(doc.Find("body").Text(), 4000)
		if text != "" {
			out = append(out, models.RawCandidate{
				Location:    location,
				Contact:     contactFrom(text),
				Description: text,
				Source:      d.tag,
			})
		}
	}
	return out, nil
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`[\+\(]?[0-9][0-9\s\-\(\)]{7,}[0-9]`)
)

// contactFrom pulls the first email and phone number out of free text.
func contactFrom(text string) string {
	var parts []string
	if m := emailRe.FindString(text); m != "" {
		parts = append(parts, m)
	}
	if m := phoneRe.FindString(text); m != "" {
		parts = append(parts, strings.Join(strings.Fields(m), " "))
	}
	return strings.Join(parts, " / ")
}

func collapse(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > max {
		text = text[:max]
	}
	return text
}

func searchURL(base, query string) string {
	return base + url.QueryEscape(query)
}

// NewIndiaMART targets dir.indiamart.com listings.
func NewIndiaMART(f webfetch.Fetcher) *Directory {
	return &Directory{
		tag:  "indiamart",
		name: "IndiaMART",
		buildURL: func(q string) string {
			return searchURL("https://dir.indiamart.com/search.mp?ss=", q)
		},
		cardSel:  ".card, .lst-cl",
		nameSel:  ".producttitle, .prd-name, .lcname",
		locSel:   ".newest-cityname, .cityname, .clg",
		fetcher:  f,
		maxItems: 10,
	}
}

// NewAlibaba targets alibaba.com trade search.
func NewAlibaba(f webfetch.Fetcher) *Directory {
	return &Directory{
		tag:  "alibaba",
		name: "Alibaba",
		buildURL: func(q string) string {
			return searchURL("https://www.alibaba.com/trade/search?SearchText=", q)
		},
		cardSel:  ".fy23-search-card, .organic-offer-wrapper, .J-offer-wrapper",
		nameSel:  ".search-card-e-company, .company-name",
		locSel:   ".search-card-e-country, .seller-country",
		fetcher:  f,
		maxItems: 10,
	}
}

// NewMadeInChina targets made-in-china.com multi-search.
func NewMadeInChina(f webfetch.Fetcher) *Directory {
	return &Directory{
		tag:  "made-in-china",
		name: "Made-in-China",
		buildURL: func(q string) string {
			return searchURL("https://www.made-in-china.com/multi-search/", q) + "/F0/1.html"
		},
		cardSel:  ".prod-info, .list-node, .sr-item",
		nameSel:  ".company-name, .compnay-name, .sr-comName",
		locSel:   ".province, .sr-comAddress",
		fetcher:  f,
		maxItems: 10,
	}
}

// NewThomasNet targets thomasnet.com supplier search.
func NewThomasNet(f webfetch.Fetcher) *Directory {
	return &Directory{
		tag:  "thomasnet",
		name: "ThomasNet",
		buildURL: func(q string) string {
			return searchURL("https://www.thomasnet.com/search/?searchTerm=", q)
		},
		cardSel:  ".supplier-search-results__card, .profile-card",
		nameSel:  ".profile-card__title, .supplier-name",
		locSel:   ".profile-card__location, .supplier-location",
		fetcher:  f,
		maxItems: 10,
	}
}

// NewEuropages targets europages.co.uk search.
func NewEuropages(f webfetch.Fetcher) *Directory {
	return &Directory{
		tag:  "europages",
		name: "Europages",
		buildURL: func(q string) string {
			return searchURL("https://www.europages.co.uk/en/search?q=", q)
		},
		cardSel:  "[data-test='company-card'], .company-card, article.ep-result",
		nameSel:  "[data-test='company-name'], .company-name, h3",
		locSel:   "[data-test='company-address'], .company-address, .ep-result__address",
		fetcher:  f,
		maxItems: 10,
	}
}
