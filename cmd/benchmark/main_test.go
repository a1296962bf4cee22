package main

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		delta     int64
		credited  int64
		uncertain int64
		want      outcome
	}{
		{"exact", 30, 30, 0, outcomeExact},
		{"exact with unresolved timeouts", 30, 30, 8, outcomeExact},
		{"timed out request committed", 38, 30, 8, outcomeIndeterminate},
		{"some timed out requests committed", 33, 30, 8, outcomeIndeterminate},
		{"only timed out credits", 5, 0, 5, outcomeIndeterminate},
		{"missing credit", 25, 30, 8, outcomeLost},
		{"gain beyond every request", 39, 30, 8, outcomeLost},
		{"gain with no timeouts", 31, 30, 0, outcomeLost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.delta, tt.credited, tt.uncertain))
		})
	}
}

func TestCreditTallyUsers(t *testing.T) {
	tally := newCreditTally()
	tally.add(1, 5)
	tally.add(1, 3)
	tally.addUncertain(1, 2)
	tally.addUncertain(7, 4)
	tally.add(3, 1)

	ids := tally.users()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []int64{1, 3, 7}, ids)
	assert.Equal(t, int64(8), tally.amount[1])
	assert.Equal(t, int64(2), tally.uncertain[1])
	assert.Zero(t, tally.amount[7])
}
