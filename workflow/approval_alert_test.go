package workflow

import "testing"

func TestShouldAlert(t *testing.T) {
	cases := []struct {
		prev int64
		cur  int64
		want bool
	}{
		{0, 1, true},  // queue wakes up
		{0, 3, true},  // batch submit into an empty queue
		{1, 2, false}, // approvers were already notified
		{2, 1, false}, // draining
		{1, 0, false}, // emptied
		{0, 0, false},
	}
	for _, tc := range cases {
		if got := ShouldAlert(tc.prev, tc.cur); got != tc.want {
			t.Errorf("ShouldAlert(%d, %d) = %v, want %v", tc.prev, tc.cur, got, tc.want)
		}
	}
}

func TestShouldAlertEdgeTriggeredSequence(t *testing.T) {
	// submit, submit, drain to zero, submit again: exactly two alerts
	counts := []int64{0, 1, 2, 1, 0, 1}
	alerts := 0
	for i := 1; i < len(counts); i++ {
		if ShouldAlert(counts[i-1], counts[i]) {
			alerts++
		}
	}
	if alerts != 2 {
		t.Fatalf("alerts fired = %d, want 2", alerts)
	}
}
