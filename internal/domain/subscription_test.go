package domain

import "testing"

func TestIsSubscribed(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   bool
	}{
		{StatusActive, true},
		{StatusTrialing, true},
		{StatusPastDue, true},
		{StatusCancelled, false},
		{StatusUnpaid, false},
		{StatusExpired, false},
		{StatusPaused, false},
		{SubscriptionStatus("something_new"), false},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			s := &Subscription{Status: tc.status}
			if got := s.IsSubscribed(); got != tc.want {
				t.Fatalf("IsSubscribed(%q) = %v, want %v", tc.status, got, tc.want)
			}
		})
	}

	var none *Subscription
	if none.IsSubscribed() {
		t.Fatalf("nil subscription must not be subscribed")
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]SubscriptionStatus{
		"on_trial":  StatusTrialing,
		"Active":    StatusActive,
		"canceled":  StatusCancelled,
		"cancelled": StatusCancelled,
		" past_due": StatusPastDue,
		"weird":     SubscriptionStatus("weird"),
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
