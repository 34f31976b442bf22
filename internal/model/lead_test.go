package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketForScore_Boundaries(t *testing.T) {
	tests := []struct {
		score    float64
		expected FitScoreBucket
	}{
		{100, BucketHigh},
		{70, BucketHigh},
		{69, BucketMedium},
		{50, BucketMedium},
		{49, BucketLow},
		{0, BucketLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, BucketForScore(tt.score), "score %.0f", tt.score)
	}
}

func TestSeverityRank_Ordering(t *testing.T) {
	assert.Less(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityLow.Rank())
}

func TestDedupeKey_PrefersDomain(t *testing.T) {
	lead := &DiscoveredLead{CompanyName: "Acme Corp", Domain: "acme.com"}
	assert.Equal(t, "acme.com", lead.DedupeKey())
}

func TestDedupeKey_FallsBackToLowercasedName(t *testing.T) {
	lead := &DiscoveredLead{CompanyName: "Acme Corp"}
	assert.Equal(t, "acme corp", lead.DedupeKey())
}

func TestICPCriteria_Empty(t *testing.T) {
	assert.True(t, (*ICPCriteria)(nil).Empty())
	assert.True(t, (&ICPCriteria{}).Empty())
	assert.False(t, (&ICPCriteria{Industries: []string{"saas"}}).Empty())
	assert.False(t, (&ICPCriteria{Keywords: []string{"crm"}}).Empty())
}

func TestNewPage_Math(t *testing.T) {
	p := NewPage([]int{1, 2, 3}, 2, 3, 7)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	first := NewPage([]int{1}, 1, 10, 1)
	assert.Equal(t, 1, first.TotalPages)
	assert.False(t, first.HasNext)
	assert.False(t, first.HasPrev)
}
