package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
)

// upsertInput mirrors the fields each rule needs to create a signal.
type upsertInput struct {
	entityType    string
	entityID      string
	signalType    model.SignalType
	severity      model.Severity
	title         string
	description   string
	data          map[string]any
	expiresInDays int
}

func (e *SignalEngine) upsertFromEvent(ctx context.Context, event *events.DomainEvent, in upsertInput) error {
	sig := &model.Signal{
		CustomerID:  event.Metadata.CustomerID,
		EntityType:  in.entityType,
		EntityID:    in.entityID,
		Type:        in.signalType,
		Severity:    in.severity,
		Title:       in.title,
		Description: in.description,
		Data:        in.data,
	}
	if in.expiresInDays > 0 {
		expires := time.Now().Add(time.Duration(in.expiresInDays) * 24 * time.Hour).UTC()
		sig.ExpiresAt = &expires
	}
	_, _, err := e.UpsertSignal(ctx, sig)
	return err
}

// RegisterEventHandlers wires every signal rule onto the dispatcher.
func RegisterEventHandlers(d *events.Dispatcher, engine *SignalEngine) {
	d.Register(events.OpportunityCreated, engine.onOpportunityCreated)
	d.Register(events.OpportunityUpdated, engine.onOpportunityUpdated)
	d.Register(events.OpportunityStageChanged, engine.onOpportunityStageChanged)
	d.Register(events.OpportunityWon, engine.onOpportunityWon)
	d.Register(events.OpportunityLost, engine.onOpportunityLost)
	d.Register(events.ActivityLogged, engine.onActivityLogged)
	d.Register(events.LeadCreated, engine.onLeadCreated)
	d.Register(events.LeadConverted, engine.onLeadConverted)
	d.Register(events.MeetingCompleted, engine.onMeetingCompleted)
	d.Register(events.MeetingNoShow, engine.onMeetingNoShow)
	d.Register(events.EmailReplied, engine.onEmailReplied)
	d.Register(events.EmailBounced, engine.onEmailBounced)
	d.Register(events.EngagementScoreUpdated, engine.onEngagementScoreUpdated)
}

// --- Opportunity rules ---

// High-value opportunities (>= $100k, amount in cents) need quick action.
func (e *SignalEngine) onOpportunityCreated(ctx context.Context, event *events.DomainEvent) error {
	amount, ok := event.Number("amount")
	if !ok || amount < 100000*100 {
		return nil
	}
	name := event.String("name")
	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "opportunity",
		entityID:    event.AggregateID,
		signalType:  model.SignalHighIntent,
		severity:    model.SeverityHigh,
		title:       fmt.Sprintf("High-value opportunity created: %s", name),
		description: "This high-value opportunity requires immediate attention.",
		data: map[string]any{
			"opportunityId":   event.AggregateID,
			"opportunityName": name,
			"amount":          amount,
			"stage":           event.String("stage"),
		},
		expiresInDays: 7,
	})
}

// Any update resolves a stalled-deal signal for the opportunity.
func (e *SignalEngine) onOpportunityUpdated(ctx context.Context, event *events.DomainEvent) error {
	_, err := e.ResolveSignalByEntity(ctx, event.Metadata.CustomerID, "opportunity", event.AggregateID,
		model.SignalDealStalled, model.SignalResolved)
	return err
}

func (e *SignalEngine) onOpportunityStageChanged(ctx context.Context, event *events.DomainEvent) error {
	customerID := event.Metadata.CustomerID

	if _, err := e.ResolveSignalByEntity(ctx, customerID, "opportunity", event.AggregateID,
		model.SignalDealStalled, model.SignalResolved); err != nil {
		return err
	}

	newStage := event.String("newStage")
	previousStage := event.String("previousStage")
	if newStage != "negotiation" || previousStage == "negotiation" {
		return nil
	}

	name := event.String("name")
	amount, _ := event.Number("amount")
	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "opportunity",
		entityID:    event.AggregateID,
		signalType:  model.SignalHighIntent,
		severity:    model.SeverityHigh,
		title:       fmt.Sprintf("%q is now in negotiation", name),
		description: "This deal has moved to negotiation stage and may need contract preparation.",
		data: map[string]any{
			"opportunityId":   event.AggregateID,
			"opportunityName": name,
			"amount":          amount,
			"previousStage":   previousStage,
			"newStage":        newStage,
		},
		expiresInDays: 14,
	})
}

func (e *SignalEngine) onOpportunityWon(ctx context.Context, event *events.DomainEvent) error {
	customerID := event.Metadata.CustomerID

	for _, sigType := range []model.SignalType{model.SignalDealStalled, model.SignalHighIntent} {
		if _, err := e.ResolveSignalByEntity(ctx, customerID, "opportunity", event.AggregateID,
			sigType, model.SignalResolved); err != nil {
			return err
		}
	}

	name := event.String("name")
	amount, _ := event.Number("amount")
	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "opportunity",
		entityID:    event.AggregateID,
		signalType:  model.SignalFollowupNeeded,
		severity:    model.SeverityMedium,
		title:       fmt.Sprintf("Start onboarding for closed deal: %s", name),
		description: "This deal has been won. Time to start the customer onboarding process.",
		data: map[string]any{
			"opportunityId":   event.AggregateID,
			"opportunityName": name,
			"amount":          amount,
			"action":          "onboarding",
		},
		expiresInDays: 7,
	})
}

func (e *SignalEngine) onOpportunityLost(ctx context.Context, event *events.DomainEvent) error {
	customerID := event.Metadata.CustomerID
	for _, sigType := range []model.SignalType{model.SignalDealStalled, model.SignalHighIntent} {
		if _, err := e.ResolveSignalByEntity(ctx, customerID, "opportunity", event.AggregateID,
			sigType, model.SignalDismissed); err != nil {
			return err
		}
	}
	return nil
}

// --- Activity rules ---

func (e *SignalEngine) onActivityLogged(ctx context.Context, event *events.DomainEvent) error {
	opportunityID := event.String("opportunityId")
	if opportunityID == "" {
		return nil
	}
	_, err := e.ResolveSignalByEntity(ctx, event.Metadata.CustomerID, "opportunity", opportunityID,
		model.SignalDealStalled, model.SignalResolved)
	return err
}

// --- Lead rules ---

// leadBatchEntityID batches lead signals by campaign, else source, else manual.
func leadBatchEntityID(event *events.DomainEvent) string {
	if campaignID := event.String("campaignId"); campaignID != "" {
		return campaignID
	}
	if source := event.String("source"); source != "" {
		return source
	}
	return "manual"
}

func (e *SignalEngine) onLeadCreated(ctx context.Context, event *events.DomainEvent) error {
	source := event.String("source")
	companyName := event.String("companyName")
	fitScore, hasScore := event.Number("fitScore")

	severity := model.SeverityMedium
	if hasScore && fitScore >= 70 {
		severity = model.SeverityHigh
	}

	sourceLabel := source
	if sourceLabel == "" {
		sourceLabel = "manual entry"
	}

	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "leads",
		entityID:    leadBatchEntityID(event),
		signalType:  model.SignalLeadsReady,
		severity:    severity,
		title:       fmt.Sprintf("New lead ready for review: %s", companyName),
		description: fmt.Sprintf("A new lead from %s needs qualification.", sourceLabel),
		data: map[string]any{
			"source":        source,
			"campaignId":    event.String("campaignId"),
			"latestLeadId":  event.AggregateID,
			"latestCompany": companyName,
			"fitScore":      fitScore,
		},
		expiresInDays: 3,
	})
}

func (e *SignalEngine) onLeadConverted(ctx context.Context, event *events.DomainEvent) error {
	_, err := e.ResolveSignalByEntity(ctx, event.Metadata.CustomerID, "leads", leadBatchEntityID(event),
		model.SignalLeadsReady, model.SignalResolved)
	return err
}

// --- Meeting rules ---

func (e *SignalEngine) onMeetingCompleted(ctx context.Context, event *events.DomainEvent) error {
	title := event.String("title")
	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "meeting",
		entityID:    event.AggregateID,
		signalType:  model.SignalFollowupNeeded,
		severity:    model.SeverityMedium,
		title:       fmt.Sprintf("Follow up after meeting: %s", title),
		description: "This meeting has been completed. Consider sending a follow-up summary or scheduling next steps.",
		data: map[string]any{
			"meetingId":    event.AggregateID,
			"meetingTitle": title,
			"contactId":    event.String("contactId"),
			"accountId":    event.String("accountId"),
		},
		expiresInDays: 3,
	})
}

func (e *SignalEngine) onMeetingNoShow(ctx context.Context, event *events.DomainEvent) error {
	title := event.String("title")
	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "meeting",
		entityID:    event.AggregateID,
		signalType:  model.SignalFollowupNeeded,
		severity:    model.SeverityHigh,
		title:       fmt.Sprintf("No-show: %s", title),
		description: "The contact did not attend this meeting. Consider reaching out to reschedule.",
		data: map[string]any{
			"meetingId":    event.AggregateID,
			"meetingTitle": title,
			"contactId":    event.String("contactId"),
			"accountId":    event.String("accountId"),
			"action":       "reschedule",
		},
		expiresInDays: 7,
	})
}

// --- Email rules ---

func (e *SignalEngine) onEmailReplied(ctx context.Context, event *events.DomainEvent) error {
	contactID := event.String("contactId")
	if contactID == "" {
		return nil
	}
	subject := event.String("subject")
	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "contact",
		entityID:    contactID,
		signalType:  model.SignalHighEngagement,
		severity:    model.SeverityHigh,
		title:       "Contact replied to email",
		description: fmt.Sprintf("The contact responded to %q. This is a strong buying signal.", subject),
		data: map[string]any{
			"emailId":        event.AggregateID,
			"contactId":      contactID,
			"subject":        subject,
			"engagementType": "email_reply",
		},
		expiresInDays: 7,
	})
}

func (e *SignalEngine) onEmailBounced(ctx context.Context, event *events.DomainEvent) error {
	contactID := event.String("contactId")
	if contactID == "" {
		return nil
	}
	toEmail := event.String("toEmail")
	return e.upsertFromEvent(ctx, event, upsertInput{
		entityType:  "contact",
		entityID:    contactID,
		signalType:  model.SignalSequenceUnderperforming,
		severity:    model.SeverityHigh,
		title:       fmt.Sprintf("Email bounced for %s", toEmail),
		description: "The email address may be invalid. Consider verifying or removing this contact.",
		data: map[string]any{
			"emailId":    event.AggregateID,
			"contactId":  contactID,
			"toEmail":    toEmail,
			"bounceType": event.String("bounceType"),
		},
		expiresInDays: 30,
	})
}

// --- Engagement rules ---

func (e *SignalEngine) onEngagementScoreUpdated(ctx context.Context, event *events.DomainEvent) error {
	contactID := event.String("contactId")
	newScore, hasNew := event.Number("newScore")
	previousScore, hasPrev := event.Number("previousScore")
	if contactID == "" || !hasNew || !hasPrev {
		return nil
	}

	// A 20+ point jump signals spiking engagement.
	if newScore-previousScore >= 20 {
		err := e.upsertFromEvent(ctx, event, upsertInput{
			entityType: "contact",
			entityID:   contactID,
			signalType: model.SignalHighEngagement,
			severity:   model.SeverityHigh,
			title:      "Contact engagement spiking",
			description: fmt.Sprintf("This contact's engagement score increased from %.0f to %.0f. They may be ready for outreach.",
				previousScore, newScore),
			data: map[string]any{
				"contactId":     contactID,
				"previousScore": previousScore,
				"newScore":      newScore,
				"increase":      newScore - previousScore,
			},
			expiresInDays: 7,
		})
		if err != nil {
			return err
		}
	}

	// Crossing the 80 threshold marks a high-intent contact.
	if newScore >= 80 && previousScore < 80 {
		return e.upsertFromEvent(ctx, event, upsertInput{
			entityType: "contact",
			entityID:   contactID,
			signalType: model.SignalHighIntent,
			severity:   model.SeverityHigh,
			title:      "Contact reached high engagement",
			description: fmt.Sprintf("This contact's engagement score is now %.0f. Consider prioritizing direct outreach.",
				newScore),
			data: map[string]any{
				"contactId": contactID,
				"score":     newScore,
			},
			expiresInDays: 14,
		})
	}
	return nil
}
