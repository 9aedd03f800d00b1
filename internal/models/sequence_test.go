package models

import (
	"testing"
	"time"
)

func TestSequenceStep_Delay(t *testing.T) {
	tests := []struct {
		name string
		step SequenceStep
		want time.Duration
	}{
		{"days only", SequenceStep{DelayDays: 2}, 48 * time.Hour},
		{"hours only", SequenceStep{DelayHours: 6}, 6 * time.Hour},
		{"days and hours", SequenceStep{DelayDays: 1, DelayHours: 12}, 36 * time.Hour},
		{"immediate", SequenceStep{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.Delay(); got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNurturingSequence_Validate(t *testing.T) {
	valid := func() *NurturingSequence {
		return &NurturingSequence{
			Name:        "Buyer welcome",
			TriggerType: TriggerNewLead,
			Steps: StepList{
				{StepNumber: 1, DelayDays: 1, ActionType: ActionTypeEmail},
				{StepNumber: 2, DelayDays: 3, ActionType: ActionTypeTask},
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid sequence, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*NurturingSequence)
	}{
		{"missing name", func(s *NurturingSequence) { s.Name = "" }},
		{"unknown trigger", func(s *NurturingSequence) { s.TriggerType = "moon_phase" }},
		{"no steps", func(s *NurturingSequence) { s.Steps = StepList{} }},
		{"unknown action", func(s *NurturingSequence) { s.Steps[0].ActionType = "carrier_pigeon" }},
		{"zero-based steps", func(s *NurturingSequence) { s.Steps[0].StepNumber = 0; s.Steps[1].StepNumber = 1 }},
		{"gap in steps", func(s *NurturingSequence) { s.Steps[1].StepNumber = 3 }},
		{"negative delay", func(s *NurturingSequence) { s.Steps[1].DelayDays = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := valid()
			tt.mutate(seq)
			if err := seq.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}

func TestNurturingSequence_StepAt(t *testing.T) {
	seq := &NurturingSequence{
		Steps: StepList{
			{StepNumber: 1, ActionType: ActionTypeEmail},
			{StepNumber: 2, ActionType: ActionTypeTask},
		},
	}

	if step, ok := seq.StepAt(0); !ok || step.StepNumber != 1 {
		t.Errorf("StepAt(0) = %+v, %v", step, ok)
	}
	if step, ok := seq.StepAt(1); !ok || step.StepNumber != 2 {
		t.Errorf("StepAt(1) = %+v, %v", step, ok)
	}
	if _, ok := seq.StepAt(2); ok {
		t.Error("Expected StepAt(2) to report out of range")
	}
	if _, ok := seq.StepAt(-1); ok {
		t.Error("Expected StepAt(-1) to report out of range")
	}

	if seq.LastStepIndex() != 1 {
		t.Errorf("LastStepIndex() = %d, want 1", seq.LastStepIndex())
	}
}
