package model

import "testing"

func TestCallStatusTerminal(t *testing.T) {
	for _, s := range []CallStatus{CallStatusEnded, CallStatusRejected, CallStatusMissed, CallStatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []CallStatus{CallStatusRinging, CallStatusActive} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
