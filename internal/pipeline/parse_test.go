package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metalagman/entrybrain/internal/model"
)

func TestParseStageResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		in            string
		wantVerdict   Verdict
		wantConf      int
		wantReasoning string
	}{
		{
			name:          "well formed",
			in:            "Reasoning: Hours match the topic.\nVerdict: PASS\nConfidence: 88",
			wantVerdict:   VerdictPass,
			wantConf:      88,
			wantReasoning: "Hours match the topic.",
		},
		{
			name:        "empty",
			in:          "",
			wantVerdict: VerdictConcern,
			wantConf:    50,
		},
		{
			name:        "whitespace only",
			in:          " \n\t ",
			wantVerdict: VerdictConcern,
			wantConf:    50,
		},
		{
			name:          "lowercase labels",
			in:            "reasoning: looks thin\nverdict: fail\nconfidence: 20",
			wantVerdict:   VerdictFail,
			wantConf:      20,
			wantReasoning: "looks thin",
		},
		{
			name:          "approve synonym",
			in:            "Analysis: solid\nDecision: APPROVE\nConfidence: 70",
			wantVerdict:   VerdictPass,
			wantConf:      70,
			wantReasoning: "solid",
		},
		{
			name:          "flag synonym",
			in:            "Assessment: mixed\nVerdict: FLAG",
			wantVerdict:   VerdictConcern,
			wantConf:      55,
			wantReasoning: "mixed",
		},
		{
			name:          "pending maps to fail",
			in:            "Reasoning: unclear\nVerdict: PENDING",
			wantVerdict:   VerdictFail,
			wantConf:      30,
			wantReasoning: "unclear",
		},
		{
			name:          "missing confidence on pass",
			in:            "Reasoning: ok\nVerdict: PASS",
			wantVerdict:   VerdictPass,
			wantConf:      82,
			wantReasoning: "ok",
		},
		{
			name:          "confidence clamped",
			in:            "Reasoning: sure\nVerdict: PASS\nConfidence: 250",
			wantVerdict:   VerdictPass,
			wantConf:      100,
			wantReasoning: "sure",
		},
		{
			name:          "confidence overflow",
			in:            "Reasoning: sure\nVerdict: PASS\nConfidence: 99999999999999999999999",
			wantVerdict:   VerdictPass,
			wantConf:      100,
			wantReasoning: "sure",
		},
		{
			name:          "no label uses text before verdict",
			in:            "The entry is plausible.\nVerdict: PASS\nConfidence: 77",
			wantVerdict:   VerdictPass,
			wantConf:      77,
			wantReasoning: "The entry is plausible.",
		},
		{
			name:          "no markers at all",
			in:            "I cannot judge this.",
			wantVerdict:   VerdictConcern,
			wantConf:      55,
			wantReasoning: "I cannot judge this.",
		},
		{
			name:          "unknown verdict word",
			in:            "Reasoning: hmm\nVerdict: MAYBE\nConfidence: 40",
			wantVerdict:   VerdictConcern,
			wantConf:      40,
			wantReasoning: "hmm",
		},
		{
			name:          "chain of thought label",
			in:            "Chain-of-Thought: step one\nstep two\nVerdict: CONCERN\nConfidence: 60",
			wantVerdict:   VerdictConcern,
			wantConf:      60,
			wantReasoning: "step one\nstep two",
		},
		{
			name:          "blank runs collapsed",
			in:            "Reasoning: a\n\n\n\nb\nVerdict: PASS\nConfidence: 90",
			wantVerdict:   VerdictPass,
			wantConf:      90,
			wantReasoning: "a\n\nb",
		},
		{
			name:          "stops at confidence when verdict missing",
			in:            "Reasoning: short\nConfidence: 65",
			wantVerdict:   VerdictConcern,
			wantConf:      65,
			wantReasoning: "short",
		},
		{
			name:          "preamble before label",
			in:            "Sure, here you go.\nReasoning: fine work\n  Verdict: PASS\nConfidence: 91",
			wantVerdict:   VerdictPass,
			wantConf:      91,
			wantReasoning: "fine work",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, c, r := ParseStageResponse(tt.in)
			assert.Equal(t, tt.wantVerdict, v)
			assert.Equal(t, tt.wantConf, c)
			assert.Equal(t, tt.wantReasoning, r)
		})
	}
}

func TestParseStageResponse_TruncatesReasoning(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1500)
	_, _, r := ParseStageResponse("Reasoning: " + long + "\nVerdict: PASS")
	assert.Equal(t, strings.Repeat("x", 1000)+"...", r)
}

func TestParseDecisionResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		in            string
		wantDecision  model.Decision
		wantConf      int
		wantReasoning string
	}{
		{
			name:          "approve",
			in:            "Reasoning: all nodes pass\nDecision: APPROVE\nConfidence: 90",
			wantDecision:  model.DecisionApprove,
			wantConf:      90,
			wantReasoning: "all nodes pass",
		},
		{
			name:         "empty",
			in:           "",
			wantDecision: model.DecisionPending,
			wantConf:     50,
		},
		{
			name:          "pass synonym with default confidence",
			in:            "Synthesis: good\nVerdict: PASS",
			wantDecision:  model.DecisionApprove,
			wantConf:      85,
			wantReasoning: "good",
		},
		{
			name:          "concern synonym",
			in:            "Reasoning: mixed\nFinal: CONCERN",
			wantDecision:  model.DecisionFlag,
			wantConf:      65,
			wantReasoning: "mixed",
		},
		{
			name:          "fail maps to pending",
			in:            "Reasoning: fabricated\nDecision: FAIL\nConfidence: 35",
			wantDecision:  model.DecisionPending,
			wantConf:      35,
			wantReasoning: "fabricated",
		},
		{
			name:          "no decision found",
			in:            "Unable to decide.",
			wantDecision:  model.DecisionPending,
			wantConf:      40,
			wantReasoning: "Unable to decide.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, c, r := ParseDecisionResponse(tt.in)
			assert.Equal(t, tt.wantDecision, d)
			assert.Equal(t, tt.wantConf, c)
			assert.Equal(t, tt.wantReasoning, r)
		})
	}
}

func TestParseDecisionResponse_TruncatesReasoning(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("y", 2000)
	_, _, r := ParseDecisionResponse("Reasoning: " + long + "\nDecision: FLAG")
	assert.Equal(t, strings.Repeat("y", 1200)+"...", r)
}

func TestOptional(t *testing.T) {
	t.Parallel()

	v, ok := Some(3).Get()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	none := None[string]()
	assert.False(t, none.Present())
	assert.Equal(t, "fallback", none.OrElse("fallback"))
}
