package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStatus(t *testing.T) {
	sess := Session{Window: window(t, at(10, 0), at(11, 0))}

	tests := []struct {
		name   string
		now    time.Time
		status string
		active bool
		ended  bool
	}{
		{name: "before start", now: at(9, 59), status: StatusCreated},
		{name: "at start", now: at(10, 0), status: StatusActive, active: true},
		{name: "mid session", now: at(10, 30), status: StatusActive, active: true},
		{name: "at end", now: at(11, 0), status: StatusEnded, ended: true},
		{name: "after end", now: at(12, 0), status: StatusEnded, ended: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.status, sess.Status(tt.now))
			require.Equal(t, tt.active, sess.IsActive(tt.now))
			require.Equal(t, tt.ended, sess.HasEnded(tt.now))
		})
	}
}
