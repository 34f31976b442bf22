package model

import "time"

// ActionType names the action a recommendation proposes.
type ActionType string

const (
	ActionViewDeal      ActionType = "view_deal"
	ActionReviewLeads   ActionType = "review_leads"
	ActionPauseSequence ActionType = "pause_sequence"
	ActionSendFollowup  ActionType = "send_followup"
	ActionVerifyContact ActionType = "verify_contact"
	ActionReachOut      ActionType = "reach_out"
)

// CardType is a rendering hint for the UI layer; opaque to this core.
type CardType string

const (
	CardDealStalled             CardType = "DealStalledCard"
	CardLeadsReady              CardType = "LeadsReadyCard"
	CardSequenceUnderperforming CardType = "SequenceUnderperformingCard"
	CardFollowUp                CardType = "FollowUpCard"
	CardActionGeneric           CardType = "ActionCard"
)

// RecommendationStatus is the lifecycle state of a recommendation.
type RecommendationStatus string

const (
	RecommendationPending   RecommendationStatus = "pending"
	RecommendationActed     RecommendationStatus = "acted"
	RecommendationDismissed RecommendationStatus = "dismissed"
	RecommendationSnoozed   RecommendationStatus = "snoozed"
)

// Recommendation is an actionable, ranked suggestion derived from a signal.
// At most one pending recommendation exists per signal.
type Recommendation struct {
	ID                string               `json:"id" db:"id"`
	CustomerID        string               `json:"customer_id" db:"customer_id"`
	UserID            string               `json:"user_id,omitempty" db:"user_id"`
	SignalID          string               `json:"signal_id,omitempty" db:"signal_id"`
	ActionType        ActionType           `json:"action_type" db:"action_type"`
	Priority          Severity             `json:"priority" db:"priority"`
	Score             float64              `json:"score" db:"score"`
	Title             string               `json:"title" db:"title"`
	Rationale         string               `json:"rationale,omitempty" db:"rationale"`
	CTALabel          string               `json:"cta_label,omitempty" db:"cta_label"`
	CTARoute          string               `json:"cta_route,omitempty" db:"cta_route"`
	CTAParams         map[string]string    `json:"cta_params,omitempty" db:"cta_params"`
	SecondaryCTALabel string               `json:"secondary_cta_label,omitempty" db:"secondary_cta_label"`
	SecondaryCTARoute string               `json:"secondary_cta_route,omitempty" db:"secondary_cta_route"`
	CardType          CardType             `json:"card_type" db:"card_type"`
	CardProps         map[string]any       `json:"card_props,omitempty" db:"card_props"`
	Data              map[string]any       `json:"data,omitempty" db:"data"`
	Status            RecommendationStatus `json:"status" db:"status"`
	SnoozedUntil      *time.Time           `json:"snoozed_until,omitempty" db:"snoozed_until"`
	ActedAt           *time.Time           `json:"acted_at,omitempty" db:"acted_at"`
	DismissedAt       *time.Time           `json:"dismissed_at,omitempty" db:"dismissed_at"`
	ExpiresAt         *time.Time           `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
}

// FeedbackAction is a user's verdict on a recommendation.
type FeedbackAction string

const (
	FeedbackAccepted FeedbackAction = "accepted"
	FeedbackDeclined FeedbackAction = "declined"
	FeedbackSnoozed  FeedbackAction = "snoozed"
)

// RecommendationFeedback records one user verdict on a recommendation.
type RecommendationFeedback struct {
	ID               string         `json:"id" db:"id"`
	RecommendationID string         `json:"recommendation_id" db:"recommendation_id"`
	UserID           string         `json:"user_id" db:"user_id"`
	Action           FeedbackAction `json:"action" db:"action"`
	Data             map[string]any `json:"data,omitempty" db:"data"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Page is a paginated slice of results.
type Page[T any] struct {
	Data       []T  `json:"data"`
	PageNum    int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPage assembles a Page from a result slice and total row count.
func NewPage[T any](data []T, pageNum, limit, total int) *Page[T] {
	if limit <= 0 {
		limit = 20
	}
	if pageNum <= 0 {
		pageNum = 1
	}
	totalPages := (total + limit - 1) / limit
	return &Page[T]{
		Data:       data,
		PageNum:    pageNum,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    pageNum < totalPages,
		HasPrev:    pageNum > 1,
	}
}
