package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplianceQuestionnaireCalculateScore(t *testing.T) {
	tests := []struct {
		name     string
		q        ComplianceQuestionnaire
		expected int
	}{
		{
			name: "all top ratings and all commitments",
			q: ComplianceQuestionnaire{
				MissedAppointmentsRating:       5,
				CancellationNoticeRating:       5,
				ScheduleImportanceRating:       5,
				RescheduleCommitmentRating:     5,
				FlexibilityRating:              5,
				Agrees24hCancellation:          true,
				AgreesNoShowPenalty:            true,
				AgreesReschedulePolicy:         true,
				AgreesCommunicationPreferences: true,
			},
			expected: 100,
		},
		{
			name: "lowest ratings and no commitments",
			q: ComplianceQuestionnaire{
				MissedAppointmentsRating:   1,
				CancellationNoticeRating:   1,
				ScheduleImportanceRating:   1,
				RescheduleCommitmentRating: 1,
				FlexibilityRating:          1,
			},
			expected: 12,
		},
		{
			name: "mixed ratings and two commitments",
			q: ComplianceQuestionnaire{
				MissedAppointmentsRating:   4,
				CancellationNoticeRating:   3,
				ScheduleImportanceRating:   5,
				RescheduleCommitmentRating: 2,
				FlexibilityRating:          4,
				Agrees24hCancellation:      true,
				AgreesNoShowPenalty:        true,
			},
			expected: 63,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.CalculateScore()
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected, tt.q.CalculatedScore)
		})
	}
}

func TestTriageQuestionnaireCalculateUrgency(t *testing.T) {
	tests := []struct {
		name           string
		q              TriageQuestionnaire
		expectedLevel  UrgencyLevel
		requiresReview bool
	}{
		{
			name:           "worsened symptoms are urgent",
			q:              TriageQuestionnaire{SymptomsWorsened: true},
			expectedLevel:  UrgencyUrgent,
			requiresReview: true,
		},
		{
			name:           "new symptoms are urgent",
			q:              TriageQuestionnaire{NewSymptoms: true},
			expectedLevel:  UrgencyUrgent,
			requiresReview: true,
		},
		{
			name:           "condition change is moderate",
			q:              TriageQuestionnaire{ConditionChanged: true},
			expectedLevel:  UrgencyModerate,
			requiresReview: true,
		},
		{
			name:           "worsened symptoms outrank condition change",
			q:              TriageQuestionnaire{ConditionChanged: true, SymptomsWorsened: true},
			expectedLevel:  UrgencyUrgent,
			requiresReview: true,
		},
		{
			name:           "no medical signals are routine",
			q:              TriageQuestionnaire{},
			expectedLevel:  UrgencyRoutine,
			requiresReview: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.CalculateUrgency()
			assert.Equal(t, tt.expectedLevel, got)
			assert.Equal(t, tt.requiresReview, tt.q.RequiresDoctorReview)
		})
	}
}
