package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetComplianceScoreKeepsLevelInSync(t *testing.T) {
	tests := []struct {
		score         int
		expectedScore int
		expectedLevel ComplianceLevel
	}{
		{score: 95, expectedScore: 95, expectedLevel: CompliancePlatinum},
		{score: 90, expectedScore: 90, expectedLevel: CompliancePlatinum},
		{score: 75, expectedScore: 75, expectedLevel: ComplianceGold},
		{score: 50, expectedScore: 50, expectedLevel: ComplianceSilver},
		{score: 25, expectedScore: 25, expectedLevel: ComplianceBronze},
		{score: 24, expectedScore: 24, expectedLevel: ComplianceProbation},
		{score: -10, expectedScore: 0, expectedLevel: ComplianceProbation},
		{score: 140, expectedScore: 100, expectedLevel: CompliancePlatinum},
	}

	for _, tt := range tests {
		p := &Patient{}
		p.SetComplianceScore(tt.score)
		assert.Equal(t, tt.expectedScore, p.ComplianceScore)
		assert.Equal(t, tt.expectedLevel, p.ComplianceLevel)
	}
}

func TestCategoryIntervalDays(t *testing.T) {
	assert.Equal(t, 7, CategoryCritical.IntervalDays())
	assert.Equal(t, 14, CategoryHighRisk.IntervalDays())
	assert.Equal(t, 30, CategoryModerate.IntervalDays())
	assert.Equal(t, 90, CategoryStable.IntervalDays())
	assert.Equal(t, 180, CategoryMaintenance.IntervalDays())
	assert.Equal(t, 365, CategoryHealthy.IntervalDays())

	// Unknown categories fall back to the quarterly default.
	assert.Equal(t, 90, PatientCategory("unknown").IntervalDays())
}

func TestCancellationRate(t *testing.T) {
	p := &Patient{TotalAppointments: 10, NoShows: 2, LateCancellations: 1}
	assert.InDelta(t, 0.3, p.CancellationRate(), 0.0001)

	fresh := &Patient{}
	assert.Zero(t, fresh.CancellationRate())
}

func TestSlotDistributionValid(t *testing.T) {
	assert.True(t, DefaultSlotDistribution().Valid())
	assert.True(t, SlotDistribution{FirstVisit: 30, FollowUp: 60, Emergency: 10}.Valid())
	assert.False(t, SlotDistribution{FirstVisit: 30, FollowUp: 60, Emergency: 20}.Valid())
	assert.False(t, SlotDistribution{FirstVisit: -10, FollowUp: 100, Emergency: 10}.Valid())
}
