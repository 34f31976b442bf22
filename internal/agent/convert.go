package agent

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/pkg/crawl4ai"
)

// toProviderCriteria maps the domain ICP criteria onto the provider wire
// shape. The two structs are field-for-field compatible on purpose.
func toProviderCriteria(c *model.ICPCriteria) crawl4ai.Criteria {
	if c == nil {
		return crawl4ai.Criteria{}
	}
	out := crawl4ai.Criteria{
		Industries:      c.Industries,
		Keywords:        c.Keywords,
		Technologies:    c.Technologies,
		Signals:         c.Signals,
		ExcludeKeywords: c.ExcludeKeywords,
		SearchQueries:   c.SearchQueries,
	}
	for _, loc := range c.Locations {
		out.Locations = append(out.Locations, crawl4ai.Location{
			City:    loc.City,
			State:   loc.State,
			Country: loc.Country,
		})
	}
	if c.EmployeeRange != nil {
		out.EmployeeRange = &crawl4ai.Range{Min: c.EmployeeRange.Min, Max: c.EmployeeRange.Max}
	}
	if c.RevenueRange != nil {
		out.RevenueRange = &crawl4ai.Range{Min: c.RevenueRange.Min, Max: c.RevenueRange.Max}
	}
	return out
}

func fromProviderCriteria(c crawl4ai.Criteria) *model.ICPCriteria {
	out := &model.ICPCriteria{
		Industries:      c.Industries,
		Keywords:        c.Keywords,
		Technologies:    c.Technologies,
		Signals:         c.Signals,
		ExcludeKeywords: c.ExcludeKeywords,
		SearchQueries:   c.SearchQueries,
	}
	for _, loc := range c.Locations {
		out.Locations = append(out.Locations, model.Location{
			City:    loc.City,
			State:   loc.State,
			Country: loc.Country,
		})
	}
	if c.EmployeeRange != nil {
		out.EmployeeRange = &model.IntRange{Min: c.EmployeeRange.Min, Max: c.EmployeeRange.Max}
	}
	if c.RevenueRange != nil {
		out.RevenueRange = &model.IntRange{Min: c.RevenueRange.Min, Max: c.RevenueRange.Max}
	}
	return out
}

func fromProviderLocation(loc *crawl4ai.Location) *model.Location {
	if loc == nil {
		return nil
	}
	return &model.Location{City: loc.City, State: loc.State, Country: loc.Country}
}

// initialFitScore maps the provider's 0-1 source confidence onto a 30-90
// starting fit score; deep crawling and scoring refine it later.
func initialFitScore(confidence float64) float64 {
	return math.Round(confidence*60) + 30
}

// parseEmployeeRange takes the low end of a range string like "50-200".
// Returns 0 when the string carries no leading number.
func parseEmployeeRange(estimate string) int {
	if estimate == "" {
		return 0
	}
	low := strings.SplitN(estimate, "-", 2)[0]
	n, err := strconv.Atoi(strings.TrimSpace(low))
	if err != nil {
		return 0
	}
	return n
}

// convertSearchResults turns raw search hits into candidate leads.
func convertSearchResults(results []crawl4ai.SearchResult) []model.DiscoveredLead {
	leads := make([]model.DiscoveredLead, 0, len(results))
	for _, r := range results {
		leads = append(leads, model.DiscoveredLead{
			CompanyName:           r.CompanyName,
			Domain:                r.Domain,
			URL:                   r.URL,
			Industry:              r.Industry,
			Description:           r.Snippet,
			Location:              fromProviderLocation(r.Location),
			EmployeeCountEstimate: parseEmployeeRange(r.EmployeeCountEstimate),
			Source:                r.Source,
			SourceURL:             r.URL,
			FitScore:              initialFitScore(r.Confidence),
		})
	}
	return leads
}

// mergeCrawl folds a deep-crawl result into a candidate. The crawl data wins
// for descriptive fields; the fit score only ever moves up.
func mergeCrawl(lead *model.DiscoveredLead, crawl *crawl4ai.CrawlResponse) {
	if crawl.Company.Industry != "" {
		lead.Industry = crawl.Company.Industry
	}
	if crawl.Company.Location != nil {
		lead.Location = fromProviderLocation(crawl.Company.Location)
	}
	if len(crawl.Company.Technologies) > 0 {
		lead.Technologies = crawl.Company.Technologies
	}
	if len(crawl.Contacts) > 0 {
		contacts := make([]model.ContactRef, 0, len(crawl.Contacts))
		for _, c := range crawl.Contacts {
			contacts = append(contacts, model.ContactRef{
				Name:     c.Name,
				Title:    c.Title,
				Email:    c.Email,
				LinkedIn: c.LinkedInURL,
			})
		}
		lead.Contacts = contacts
	}
	if crawl.Company.IsHiring {
		lead.Signals = append(lead.Signals, model.LeadSignal{
			Type:        "hiring",
			Description: "Company is actively hiring",
			Source:      "careers_page",
		})
	}
	lead.FitScore = math.Max(lead.FitScore, crawl.FitScoreEstimate)
}

// toScoreLeads builds the scoring request payload from the candidates.
func toScoreLeads(leads []model.DiscoveredLead) []crawl4ai.ScoreLead {
	out := make([]crawl4ai.ScoreLead, 0, len(leads))
	for _, l := range leads {
		var signals []string
		for _, s := range l.Signals {
			signals = append(signals, s.Type)
		}
		var loc *crawl4ai.Location
		if l.Location != nil {
			loc = &crawl4ai.Location{City: l.Location.City, State: l.Location.State, Country: l.Location.Country}
		}
		out = append(out, crawl4ai.ScoreLead{
			CompanyName:           l.CompanyName,
			Domain:                l.Domain,
			Industry:              l.Industry,
			Location:              loc,
			EmployeeCountEstimate: l.EmployeeCountEstimate,
			Description:           l.Description,
			Technologies:          l.Technologies,
			Signals:               signals,
		})
	}
	return out
}

// splitContactName splits a full name into first name and the remainder.
func splitContactName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// toLeadInput builds the persistence row for one qualified candidate.
func toLeadInput(lead model.DiscoveredLead, runID string, criteria *model.ICPCriteria) model.CreateLeadInput {
	input := model.CreateLeadInput{
		CompanyName:     lead.CompanyName,
		Domain:          lead.Domain,
		Industry:        lead.Industry,
		EmployeeCount:   lead.EmployeeCountEstimate,
		Source:          "discovery",
		GenerationJobID: runID,
		SourceURL:       lead.SourceURL,
		FitScore:        lead.FitScore,
		CustomFields: map[string]any{
			"discoveryData": map[string]any{
				"technologies": lead.Technologies,
				"signals":      lead.Signals,
				"matchReasons": lead.MatchReasons,
				"rawSource":    lead.Source,
			},
			"criteria": criteria,
		},
	}
	if lead.Location != nil {
		input.City = lead.Location.City
		input.State = lead.Location.State
		input.Country = lead.Location.Country
	}
	if len(lead.Contacts) > 0 {
		primary := lead.Contacts[0]
		input.ContactFirstName, input.ContactLastName = splitContactName(primary.Name)
		input.ContactEmail = primary.Email
		input.ContactTitle = primary.Title
	}
	return input
}
