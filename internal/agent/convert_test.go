package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/pkg/crawl4ai"
)

// --- Fit score + range parsing ---

func TestInitialFitScore(t *testing.T) {
	assert.Equal(t, 30.0, initialFitScore(0))
	assert.Equal(t, 60.0, initialFitScore(0.5))
	assert.Equal(t, 90.0, initialFitScore(1))
	assert.Equal(t, 84.0, initialFitScore(0.9))
}

func TestParseEmployeeRange(t *testing.T) {
	tests := []struct {
		name     string
		estimate string
		want     int
	}{
		{"range string", "50-200", 50},
		{"single number", "120", 120},
		{"empty", "", 0},
		{"non-numeric", "unknown", 0},
		{"spaced range", "10 - 50", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseEmployeeRange(tt.estimate))
		})
	}
}

// --- Search result conversion ---

func TestConvertSearchResults(t *testing.T) {
	results := []crawl4ai.SearchResult{
		{
			Source:                "google_search",
			CompanyName:           "Acme Robotics",
			Domain:                "acme.io",
			URL:                   "https://acme.io",
			Snippet:               "Industrial robots",
			Industry:              "Manufacturing",
			Location:              &crawl4ai.Location{City: "Austin", State: "TX", Country: "US"},
			EmployeeCountEstimate: "50-200",
			Confidence:            0.9,
		},
		{
			Source:      "google_maps",
			CompanyName: "No Domain Co",
			Confidence:  0.2,
		},
	}

	leads := convertSearchResults(results)
	require.Len(t, leads, 2)

	acme := leads[0]
	assert.Equal(t, "Acme Robotics", acme.CompanyName)
	assert.Equal(t, "acme.io", acme.Domain)
	assert.Equal(t, "https://acme.io", acme.URL)
	assert.Equal(t, "https://acme.io", acme.SourceURL)
	assert.Equal(t, "Industrial robots", acme.Description)
	assert.Equal(t, "Manufacturing", acme.Industry)
	require.NotNil(t, acme.Location)
	assert.Equal(t, "Austin", acme.Location.City)
	assert.Equal(t, 50, acme.EmployeeCountEstimate)
	assert.Equal(t, 84.0, acme.FitScore)
	assert.Equal(t, "google_search", acme.Source)

	assert.Nil(t, leads[1].Location)
	assert.Equal(t, 0, leads[1].EmployeeCountEstimate)
	assert.Equal(t, 42.0, leads[1].FitScore)
}

// --- Crawl merge ---

func TestMergeCrawlEnrichesLead(t *testing.T) {
	lead := model.DiscoveredLead{
		CompanyName: "Acme",
		Industry:    "Manufacturing",
		FitScore:    60,
	}
	mergeCrawl(&lead, &crawl4ai.CrawlResponse{
		Company: crawl4ai.CrawlCompany{
			Industry:     "Robotics",
			Location:     &crawl4ai.Location{City: "Austin"},
			Technologies: []string{"ROS", "Go"},
			IsHiring:     true,
		},
		Contacts: []crawl4ai.CrawlContact{
			{Name: "Jane Doe", Title: "CEO", Email: "jane@acme.io", LinkedInURL: "https://linkedin.com/in/janedoe"},
		},
		FitScoreEstimate: 80,
	})

	assert.Equal(t, "Robotics", lead.Industry)
	require.NotNil(t, lead.Location)
	assert.Equal(t, "Austin", lead.Location.City)
	assert.Equal(t, []string{"ROS", "Go"}, lead.Technologies)
	require.Len(t, lead.Contacts, 1)
	assert.Equal(t, "https://linkedin.com/in/janedoe", lead.Contacts[0].LinkedIn)
	require.Len(t, lead.Signals, 1)
	assert.Equal(t, "hiring", lead.Signals[0].Type)
	assert.Equal(t, "careers_page", lead.Signals[0].Source)
	assert.Equal(t, 80.0, lead.FitScore)
}

func TestMergeCrawlNeverLowersFitScore(t *testing.T) {
	lead := model.DiscoveredLead{CompanyName: "Acme", FitScore: 85}
	mergeCrawl(&lead, &crawl4ai.CrawlResponse{FitScoreEstimate: 40})
	assert.Equal(t, 85.0, lead.FitScore)
}

func TestMergeCrawlKeepsExistingFieldsWhenCrawlIsEmpty(t *testing.T) {
	lead := model.DiscoveredLead{
		CompanyName:  "Acme",
		Industry:     "Manufacturing",
		Technologies: []string{"Go"},
		FitScore:     60,
	}
	mergeCrawl(&lead, &crawl4ai.CrawlResponse{})

	assert.Equal(t, "Manufacturing", lead.Industry)
	assert.Equal(t, []string{"Go"}, lead.Technologies)
	assert.Empty(t, lead.Signals)
}

// --- Criteria round trip ---

func TestCriteriaConversionRoundTrip(t *testing.T) {
	criteria := &model.ICPCriteria{
		Industries:    []string{"saas"},
		Locations:     []model.Location{{City: "Denver", State: "CO", Country: "US"}},
		EmployeeRange: &model.IntRange{Min: 10, Max: 500},
		Keywords:      []string{"b2b"},
	}

	back := fromProviderCriteria(toProviderCriteria(criteria))
	assert.Equal(t, criteria, back)
}

func TestToProviderCriteriaNil(t *testing.T) {
	assert.Equal(t, crawl4ai.Criteria{}, toProviderCriteria(nil))
}

// --- Lead input ---

func TestToLeadInput(t *testing.T) {
	criteria := &model.ICPCriteria{Industries: []string{"robotics"}}
	lead := model.DiscoveredLead{
		CompanyName:           "Acme",
		Domain:                "acme.io",
		Industry:              "Robotics",
		EmployeeCountEstimate: 120,
		Location:              &model.Location{City: "Austin", State: "TX", Country: "US"},
		Technologies:          []string{"Go"},
		Signals:               []model.LeadSignal{{Type: "hiring"}},
		Contacts: []model.ContactRef{
			{Name: "Jane Mary Doe", Title: "CEO", Email: "jane@acme.io"},
			{Name: "Ignored Second"},
		},
		Source:       "google_search",
		SourceURL:    "https://acme.io",
		FitScore:     88,
		MatchReasons: []string{"industry match"},
	}

	input := toLeadInput(lead, "run-1", criteria)

	assert.Equal(t, "Acme", input.CompanyName)
	assert.Equal(t, "discovery", input.Source)
	assert.Equal(t, "run-1", input.GenerationJobID)
	assert.Equal(t, "Austin", input.City)
	assert.Equal(t, "TX", input.State)
	assert.Equal(t, "Jane", input.ContactFirstName)
	assert.Equal(t, "Mary Doe", input.ContactLastName)
	assert.Equal(t, "jane@acme.io", input.ContactEmail)
	assert.Equal(t, "CEO", input.ContactTitle)
	assert.Equal(t, 88.0, input.FitScore)

	discovery, ok := input.CustomFields["discoveryData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"Go"}, discovery["technologies"])
	assert.Equal(t, []string{"industry match"}, discovery["matchReasons"])
	assert.Equal(t, "google_search", discovery["rawSource"])
	assert.Equal(t, criteria, input.CustomFields["criteria"])
}

func TestSplitContactName(t *testing.T) {
	first, last := splitContactName("Jane Doe")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = splitContactName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)

	first, last = splitContactName("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}
