package meeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialogueHistory(t *testing.T) {
	var h DialogueHistory
	assert.Equal(t, "", h.String())

	h.AppendRound(RoundLabel(1), "hello", "hi")
	h.AppendDoctor(RoundLabel(2), "the results")
	assert.Equal(t, 2, h.Rounds())
	h.AppendPatient("I see")

	want := "===== Round-1 =====\ndoctor：hello\npatient：hi\n" +
		"===== Round-2 =====\ndoctor：the results\npatient：I see\n"
	assert.Equal(t, want, h.String())
	assert.Equal(t, 2, h.Rounds())
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "first"},
		{2, "second"},
		{10, "tenth"},
		{11, "round-11"},
		{0, "round-0"},
		{-1, "round--1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ordinal(tt.n), "Ordinal(%d)", tt.n)
	}
}
