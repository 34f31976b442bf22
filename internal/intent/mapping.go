package intent

import (
	"fmt"

	"github.com/sells-group/salesops/internal/model"
)

// severityScore derives the base recommendation score from signal severity.
func severityScore(sev model.Severity) float64 {
	switch sev {
	case model.SeverityHigh:
		return 100
	case model.SeverityMedium:
		return 50
	default:
		return 25
	}
}

func dataString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// mapSignal builds the recommendation for a signal. Returns nil for signal
// types that have no recommendation mapping; callers skip those.
func mapSignal(sig *model.Signal) *model.Recommendation {
	rationale := func(fallback string) string {
		if sig.Description != "" {
			return sig.Description
		}
		return fallback
	}

	base := model.Recommendation{
		CustomerID: sig.CustomerID,
		SignalID:   sig.ID,
		Priority:   sig.Severity,
		Score:      severityScore(sig.Severity),
		Title:      sig.Title,
	}

	switch sig.Type {
	case model.SignalDealStalled:
		oppID := dataString(sig.Data, "opportunityId")
		base.ActionType = model.ActionViewDeal
		base.Rationale = rationale("This deal has been inactive and may need attention.")
		base.CTALabel = "View Deal"
		base.CTARoute = "/opportunities/" + oppID
		base.SecondaryCTALabel = "Log Activity"
		base.SecondaryCTARoute = "/opportunities/" + oppID + "/activities/new"
		base.CardType = model.CardDealStalled
		base.CardProps = map[string]any{
			"opportunityId":     sig.Data["opportunityId"],
			"opportunityName":   sig.Data["opportunityName"],
			"accountName":       propOr(sig.Data, "accountName", "Unknown Account"),
			"daysSinceActivity": propOr(sig.Data, "daysSinceActivity", 14),
			"amount":            sig.Data["amount"],
			"stage":             sig.Data["stage"],
		}
		return &base

	case model.SignalLeadsReady:
		base.ActionType = model.ActionReviewLeads
		base.Rationale = rationale("New leads are ready for review and qualification.")
		base.CTALabel = "Review Leads"
		if campaignID := dataString(sig.Data, "campaignId"); campaignID != "" {
			base.CTARoute = fmt.Sprintf("/leads?campaignId=%s&status=new", campaignID)
		} else {
			base.CTARoute = fmt.Sprintf("/leads?source=%s&status=new", dataString(sig.Data, "source"))
		}
		base.SecondaryCTALabel = "Start Campaign"
		base.SecondaryCTARoute = "/sequences/new"
		base.CardType = model.CardLeadsReady
		base.CardProps = map[string]any{
			"count":        sig.Data["count"],
			"source":       sig.Data["source"],
			"campaignId":   sig.Data["campaignId"],
			"campaignName": sig.Data["campaignName"],
		}
		return &base

	case model.SignalReplyRateDrop:
		seqID := dataString(sig.Data, "sequenceId")
		base.ActionType = model.ActionPauseSequence
		base.Rationale = rationale("This sequence may need optimization.")
		base.CTALabel = "View Sequence"
		base.CTARoute = "/sequences/" + seqID
		base.SecondaryCTALabel = "Pause Sequence"
		base.SecondaryCTARoute = "/sequences/" + seqID + "/pause"
		base.CardType = model.CardSequenceUnderperforming
		base.CardProps = map[string]any{
			"sequenceId":      sig.Data["sequenceId"],
			"sequenceName":    sig.Data["sequenceName"],
			"replyRate":       sig.Data["replyRate"],
			"replyRateChange": sig.Data["replyRateChange"],
			"activeContacts":  sig.Data["activeContacts"],
		}
		return &base

	case model.SignalFollowupNeeded:
		contactID := dataString(sig.Data, "contactId")
		base.ActionType = model.ActionSendFollowup
		base.Rationale = rationale("A follow-up may be needed after the recent meeting.")
		base.CTALabel = "Send Follow-up"
		base.CTARoute = "/contacts/" + contactID + "/email/new"
		base.SecondaryCTALabel = "View Contact"
		base.SecondaryCTARoute = "/contacts/" + contactID
		base.CardType = model.CardFollowUp
		base.CardProps = map[string]any{
			"contactId":        sig.Data["contactId"],
			"contactName":      sig.Data["contactName"],
			"contactTitle":     sig.Data["contactTitle"],
			"accountName":      sig.Data["accountName"],
			"meetingTitle":     sig.Data["meetingTitle"],
			"meetingDate":      sig.Data["meetingDate"],
			"daysSinceMeeting": sig.Data["daysSinceMeeting"],
		}
		return &base

	default:
		return nil
	}
}

func propOr(data map[string]any, key string, fallback any) any {
	if data == nil {
		return fallback
	}
	if v, ok := data[key]; ok && v != nil {
		return v
	}
	return fallback
}
