package quiz

import (
	"testing"
	"time"
)

func TestScoreDelta(t *testing.T) {
	cfg := Config{
		TimePerQuestion:  15 * time.Second,
		PointsForCorrect: 100,
		BonusForSpeed:    true,
	}

	tests := []struct {
		name    string
		cfg     Config
		correct bool
		elapsed time.Duration
		want    int
	}{
		{
			name:    "incorrect",
			cfg:     cfg,
			correct: false,
			elapsed: time.Second,
			want:    0,
		},
		{
			name:    "instant answer gets full bonus",
			cfg:     cfg,
			correct: true,
			elapsed: 0,
			want:    150,
		},
		{
			name:    "answer at the limit gets base points",
			cfg:     cfg,
			correct: true,
			elapsed: 15 * time.Second,
			want:    100,
		},
		{
			name:    "two seconds in",
			cfg:     cfg,
			correct: true,
			elapsed: 2 * time.Second,
			want:    143, // 100 + floor((1 - 2/15) * 50)
		},
		{
			name:    "halfway",
			cfg:     cfg,
			correct: true,
			elapsed: 7500 * time.Millisecond,
			want:    125,
		},
		{
			name:    "negative elapsed clamps to zero",
			cfg:     cfg,
			correct: true,
			elapsed: -time.Second,
			want:    150,
		},
		{
			name:    "elapsed past the limit clamps to the limit",
			cfg:     cfg,
			correct: true,
			elapsed: time.Minute,
			want:    100,
		},
		{
			name: "bonus disabled",
			cfg: Config{
				TimePerQuestion:  15 * time.Second,
				PointsForCorrect: 100,
			},
			correct: true,
			elapsed: 0,
			want:    100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreDelta(tt.cfg, tt.correct, tt.elapsed); got != tt.want {
				t.Errorf("scoreDelta() = %d, want %d", got, tt.want)
			}
		})
	}
}
