package render

import (
	"embed"
	"html/template"
	"io"
	"net/url"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// NoDataWarning is shown instead of metrics and charts for an empty range.
const NoDataWarning = "No data in the selected date range."

//go:embed templates/dashboard.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// ChartLink is one chart image on the page.
type ChartLink struct {
	Title string
	URL   string
}

// Page is the data rendered by the dashboard template.
type Page struct {
	Start, End string
	Min, Max   string
	Summary    models.Summary
	Charts     []ChartLink
	ExportURL  string
	Warning    string
	Error      string
}

// NewPage builds the page for a successful report.
func NewPage(rep models.Report) Page {
	p := basePage(rep.Range)
	p.Summary = rep.Summary
	q := rangeQuery(rep.Range)
	for _, v := range Views {
		p.Charts = append(p.Charts, ChartLink{
			Title: v.Title,
			URL:   "/api/charts/" + v.Name + ".svg?" + q,
		})
	}
	p.ExportURL = "/api/export.xlsx?" + q
	return p
}

// NoDataPage builds the page for a range that selects no records.
func NoDataPage(r models.DateRange) Page {
	p := basePage(r)
	p.Warning = NoDataWarning
	return p
}

// ErrorPage builds the page for invalid input or an unavailable dataset.
// The form keeps the raw values the user submitted.
func ErrorPage(start, end, message string) Page {
	p := basePage(models.FullRange())
	if start != "" {
		p.Start = start
	}
	if end != "" {
		p.End = end
	}
	p.Error = message
	return p
}

func basePage(r models.DateRange) Page {
	return Page{
		Start: r.Start.Format(models.DateLayout),
		End:   r.End.Format(models.DateLayout),
		Min:   models.MinDate.Format(models.DateLayout),
		Max:   models.MaxDate.Format(models.DateLayout),
	}
}

func rangeQuery(r models.DateRange) string {
	v := url.Values{}
	v.Set("start", r.Start.Format(models.DateLayout))
	v.Set("end", r.End.Format(models.DateLayout))
	return v.Encode()
}

// WritePage renders p as HTML.
func WritePage(w io.Writer, p Page) error {
	return pageTemplate.Execute(w, p)
}
