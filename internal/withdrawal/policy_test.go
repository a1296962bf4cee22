package withdrawal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanWithdraw(t *testing.T) {
	tests := []struct {
		points int64
		want   bool
	}{
		{-5, false},
		{0, false},
		{99, false},
		{100, true},
		{101, true},
		{10_000, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.points), func(t *testing.T) {
			assert.Equal(t, tt.want, CanWithdraw(tt.points))
		})
	}
}

func TestWithdrawableAmount(t *testing.T) {
	tests := []struct {
		points int64
		want   int64
	}{
		{-250, 0},
		{0, 0},
		{99, 0},
		{100, 100},
		{199, 100},
		{250, 200},
		{1000, 1000},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.points), func(t *testing.T) {
			if got := WithdrawableAmount(tt.points); got != tt.want {
				t.Errorf("WithdrawableAmount(%d) = %d, want %d", tt.points, got, tt.want)
			}
		})
	}
}

func TestPointsToDollars(t *testing.T) {
	tests := []struct {
		points int64
		want   string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{99, "0.99"},
		{100, "1.00"},
		{250, "2.50"},
		{123456, "1234.56"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, PointsToDollars(tt.points))
		})
	}
}

func TestEvaluate(t *testing.T) {
	q := Evaluate(250)
	assert.True(t, q.Eligible)
	assert.Equal(t, int64(200), q.WithdrawableAmount)
	assert.Equal(t, "2.50", q.DollarValue)
	assert.Equal(t, "2.00", q.WithdrawableDollars)
	assert.Equal(t, int64(50), q.Remainder)

	q = Evaluate(99)
	assert.False(t, q.Eligible)
	assert.Equal(t, int64(0), q.WithdrawableAmount)
	assert.Equal(t, "0.99", q.DollarValue)
	assert.Equal(t, "0.00", q.WithdrawableDollars)
	assert.Equal(t, int64(99), q.Remainder)
}
