package agent

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops/internal/approval"
	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/internal/store"
	"github.com/sells-group/salesops/pkg/crawl4ai"
)

const (
	defaultMaxResults  = 100
	defaultMinFitScore = 40

	// Deep crawling is the slowest stage, so only the strongest candidates
	// get a crawl.
	crawlTopN     = 10
	crawlMaxPages = 5
)

var searchSources = []string{"google_search", "google_maps"}

// Options tune a Discovery agent. Zero values fall back to defaults.
type Options struct {
	MaxResults    int
	MinFitScore   float64
	CrawlTopN     int
	CrawlMaxPages int
}

// Discovery finds leads matching ICP criteria, persists the qualified ones,
// and queues an approval item per created lead.
type Discovery struct {
	provider crawl4ai.Client
	store    store.Store
	bridge   *approval.Bridge
	registry *Registry
	opts     Options
}

func NewDiscovery(provider crawl4ai.Client, st store.Store, bridge *approval.Bridge, registry *Registry, opts Options) *Discovery {
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.MinFitScore <= 0 {
		opts.MinFitScore = defaultMinFitScore
	}
	if opts.CrawlTopN <= 0 {
		opts.CrawlTopN = crawlTopN
	}
	if opts.CrawlMaxPages <= 0 {
		opts.CrawlMaxPages = crawlMaxPages
	}
	return &Discovery{
		provider: provider,
		store:    st,
		bridge:   bridge,
		registry: registry,
		opts:     opts,
	}
}

// Validate checks that a run can start: the input must carry a prompt or
// criteria, and the provider must be reachable.
func (d *Discovery) Validate(ctx context.Context, input *Input) []string {
	var errs []string
	if input.Prompt == "" && input.Criteria.Empty() {
		errs = append(errs, "either prompt or criteria is required")
	}
	if !d.provider.Health(ctx) {
		errs = append(errs, "discovery provider is not available")
	}
	return errs
}

// Cancel requests cooperative cancellation of a run.
func (d *Discovery) Cancel(runID string) bool {
	return d.registry.Cancel(runID)
}

// Progress reports a running run, or nil when the run is not in flight.
func (d *Discovery) Progress(runID string) *Progress {
	return d.registry.Progress(runID)
}

// Execute runs the full discovery pipeline for one run. Cancellation is
// checked before each stage and between crawls; a cancelled run returns a
// terminal output rather than an error. Fatal errors drop the run from the
// registry and propagate.
func (d *Discovery) Execute(ctx context.Context, customerID, runID string, input *Input) (*Output, error) {
	log := zap.L().With(zap.String("run_id", runID), zap.String("customer_id", customerID))

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = d.opts.MaxResults
	}
	minFitScore := input.MinFitScore
	if minFitScore <= 0 {
		minFitScore = d.opts.MinFitScore
	}

	d.registry.register(runID)

	out, err := d.run(ctx, log, customerID, runID, input, maxResults, minFitScore)
	d.registry.remove(runID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Discovery) run(ctx context.Context, log *zap.Logger, customerID, runID string, input *Input, maxResults int, minFitScore float64) (*Output, error) {
	// Stage 1: resolve criteria, parsing the prompt when none were given.
	criteria := input.Criteria
	if input.Prompt != "" && criteria.Empty() {
		log.Info("parsing discovery prompt")
		d.registry.update(runID, StepParsingPrompt, 5)

		parsed, err := d.provider.ParsePrompt(ctx, input.Prompt)
		if err != nil {
			return nil, eris.Wrap(err, "agent: parse prompt")
		}
		criteria = fromProviderCriteria(parsed.Criteria)
		log.Info("prompt parsed",
			zap.Float64("confidence", parsed.Confidence),
			zap.Strings("industries", criteria.Industries))
	}
	if d.registry.cancelled(runID) {
		return cancelledOutput(), nil
	}

	// Stage 2: multi-source company search.
	log.Info("searching for companies")
	d.registry.update(runID, StepSearching, 15)

	searchResp, err := d.provider.Search(ctx, &crawl4ai.SearchRequest{
		Criteria:   toProviderCriteria(criteria),
		MaxResults: maxResults,
		Sources:    searchSources,
	})
	if err != nil {
		return nil, eris.Wrap(err, "agent: search")
	}
	log.Info("search completed", zap.Int("results", searchResp.Total))
	if d.registry.cancelled(runID) {
		return cancelledOutput(), nil
	}

	// Stage 3: convert raw hits into candidate leads.
	d.registry.update(runID, StepProcessingResults, 40)
	leads := convertSearchResults(searchResp.Results)

	// Stage 4: deep crawl the strongest candidates that have a URL.
	log.Info("deep crawling top results")
	d.registry.update(runID, StepDeepCrawling, 50)

	var top []*model.DiscoveredLead
	for i := range leads {
		if len(top) == d.opts.CrawlTopN {
			break
		}
		if leads[i].URL != "" {
			top = append(top, &leads[i])
		}
	}
	d.registry.setItems(runID, 0, len(top))

	for i, lead := range top {
		if d.registry.cancelled(runID) {
			return cancelledOutput(), nil
		}

		crawl, crawlErr := d.provider.CrawlWebsite(ctx, lead.URL, crawl4ai.CrawlOptions{
			ExtractContacts: true,
			MaxPages:        d.opts.CrawlMaxPages,
		})
		if crawlErr != nil {
			log.Warn("deep crawl failed, skipping candidate",
				zap.String("url", lead.URL), zap.Error(crawlErr))
		} else {
			mergeCrawl(lead, crawl)
		}

		processed := i + 1
		d.registry.setItems(runID, processed, len(top))
		d.registry.update(runID, StepDeepCrawling,
			50+int(math.Round(float64(processed)/float64(len(top))*20)))
	}
	if d.registry.cancelled(runID) {
		return cancelledOutput(), nil
	}

	// Stage 5: score against the ICP and keep the qualified candidates.
	log.Info("scoring leads")
	d.registry.update(runID, StepScoring, 75)

	scoreResp, err := d.provider.ScoreLeads(ctx, &crawl4ai.ScoreRequest{
		Leads:    toScoreLeads(leads),
		Criteria: toProviderCriteria(criteria),
	})
	if err != nil {
		return nil, eris.Wrap(err, "agent: score leads")
	}

	scored := make(map[string]crawl4ai.ScoredLead, len(scoreResp.ScoredLeads))
	for _, s := range scoreResp.ScoredLeads {
		scored[s.CompanyName] = s
	}
	for i := range leads {
		if s, ok := scored[leads[i].CompanyName]; ok {
			leads[i].FitScore = s.FitScore
			leads[i].MatchReasons = s.MatchReasons
		}
	}

	qualified := leads[:0]
	seen := make(map[string]struct{})
	for _, lead := range leads {
		if lead.FitScore < minFitScore {
			continue
		}
		key := lead.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		qualified = append(qualified, lead)
	}
	leads = qualified
	log.Info("scoring completed", zap.Int("qualified", len(leads)))
	if d.registry.cancelled(runID) {
		return cancelledOutput(), nil
	}

	// Stage 6: persist qualified leads.
	log.Info("creating leads")
	d.registry.update(runID, StepCreatingLeads, 85)

	inputs := make([]model.CreateLeadInput, 0, len(leads))
	for _, lead := range leads {
		inputs = append(inputs, toLeadInput(lead, runID, criteria))
	}
	bulk, err := d.store.BulkCreateLeads(ctx, customerID, inputs)
	if err != nil {
		return nil, eris.Wrap(err, "agent: create leads")
	}
	log.Info("leads created",
		zap.Int("created", len(bulk.Created)),
		zap.Int("errors", len(bulk.Errors)))

	// Stage 7: queue one approval item per created lead.
	log.Info("creating approval queue items")
	d.registry.update(runID, StepCreatingApprovals, 95)

	approvals, err := d.bridge.CreateItems(ctx, customerID, runID, bulk.Created)
	if err != nil {
		return nil, eris.Wrap(err, "agent: create approval items")
	}

	d.registry.update(runID, StepCompleted, 100)

	return &Output{
		Status: RunCompleted,
		Summary: Summary{
			SearchResults: searchResp.Total,
			DeepCrawled:   len(top),
			Qualified:     len(leads),
			Created:       len(bulk.Created),
			CreateErrors:  len(bulk.Errors),
			ByBucket:      approvals.ByBucket,
			AvgFitScore:   scoreResp.AvgFitScore,
			Prompt:        input.Prompt,
			Criteria:      criteria,
		},
		LeadsDiscovered: len(bulk.Created),
		CreditsUsed:     0,
		ApprovalItemIDs: approvals.ItemIDs,
	}, nil
}

func cancelledOutput() *Output {
	return &Output{
		Status:  RunCancelled,
		Summary: Summary{Reason: "Cancelled by user"},
	}
}
