package netconfig

import "testing"

func TestLifeStateString(t *testing.T) {
	tests := []struct {
		state LifeState
		want  string
		valid bool
	}{
		{Alive, "alive", true},
		{Dead, "dead", true},
		{LifeState(7), "LifeState(7)", false},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.state.Valid(); got != tt.valid {
			t.Errorf("%v.Valid() = %v, want %v", tt.state, got, tt.valid)
		}
	}
}
