package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern_Match(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		pattern   string
		eventName string
		expected  bool
	}{
		{name: "exact match", pattern: "order.created", eventName: "order.created", expected: true},
		{name: "exact mismatch", pattern: "order.created", eventName: "order.updated", expected: false},
		{name: "exact pattern is not a prefix match", pattern: "order.created", eventName: "order.created.v2", expected: false},
		{name: "dot is literal in exact pattern", pattern: "order.created", eventName: "orderXcreated", expected: false},
		{name: "trailing wildcard matches action", pattern: "order.*", eventName: "order.created", expected: true},
		{name: "trailing wildcard matches other action", pattern: "order.*", eventName: "order.cancelled", expected: true},
		{name: "trailing wildcard rejects other domain", pattern: "order.*", eventName: "shipment.created", expected: false},
		{name: "single wildcard rejects extra segments", pattern: "order.*", eventName: "order.line.added", expected: false},
		{name: "dot is literal in wildcard pattern", pattern: "order.*", eventName: "orderXcreated", expected: false},
		{name: "leading wildcard", pattern: "*.created", eventName: "contract.created", expected: true},
		{name: "middle wildcard", pattern: "project.*.updated", eventName: "project.phase.updated", expected: true},
		{name: "middle wildcard rejects missing segment", pattern: "project.*.updated", eventName: "project.updated", expected: false},
		{name: "partial segment wildcard", pattern: "order.created*", eventName: "order.created_v2", expected: true},
		{name: "wildcard matches empty run", pattern: "order.*", eventName: "order.", expected: true},
		{name: "double wildcard crosses segments", pattern: "order.**", eventName: "order.line.added", expected: true},
		{name: "catch-all", pattern: "**", eventName: "anything.at.all", expected: true},
		{name: "regexp metacharacters are literal", pattern: "order+.*", eventName: "order+.created", expected: true},
		{name: "regexp metacharacters do not expand", pattern: "order+.*", eventName: "orderr.created", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			p, err := CompilePattern(tc.pattern)
			require.NoError(t, err)

			// when
			matched := p.Match(tc.eventName)

			// then
			assert.Equal(t, tc.expected, matched)
		})
	}
}

func TestCompilePattern_WildcardSegmentSubstitution(t *testing.T) {
	t.Parallel()

	// every name that differs from the pattern only in the wildcard segment is accepted
	p, err := CompilePattern("billing.*.issued")
	require.NoError(t, err)
	for _, segment := range []string{"invoice", "credit_note", "x", "INV-2024"} {
		assert.True(t, p.Match("billing."+segment+".issued"), segment)
	}
	assert.False(t, p.Match("billing.invoice.draft.issued"))
	assert.False(t, p.Match("billing.invoice.issued.late"))
}

func TestCompilePattern_Errors(t *testing.T) {
	t.Parallel()

	_, err := CompilePattern("")
	assert.ErrorIs(t, err, ErrEmptyPattern)

	_, err = CompilePattern("   ")
	assert.ErrorIs(t, err, ErrEmptyPattern)
}
