package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

// StateTestSuite tests the availability state type
type StateTestSuite struct {
	suite.Suite
}

func (s *StateTestSuite) TestParseState() {
	testCases := []struct {
		raw      string
		expected AvailabilityState
		valid    bool
	}{
		{"down", StateDown, true},
		{"changing", StateChanging, true},
		{"up", StateUp, true},
		{" up\n", StateUp, true},
		{"UP", "", false},
		{"", "", false},
		{"1", "", false},
		{"starting", "", false},
	}

	for _, tc := range testCases {
		state, err := ParseState(tc.raw)
		if tc.valid {
			s.NoError(err, tc.raw)
			s.Equal(tc.expected, state)
		} else {
			s.ErrorIs(err, ErrInvalidState, tc.raw)
			s.Empty(state)
		}
	}
}

func (s *StateTestSuite) TestStatesAreValid() {
	s.Len(States, 3)
	for _, state := range States {
		s.True(state.Valid())
	}
	s.False(AvailabilityState("unknown").Valid())
}

func (s *StateTestSuite) TestPayloadIsQuotedJSON() {
	body, err := json.Marshal(StatePayload{State: StateChanging})
	s.Require().NoError(err)
	s.JSONEq(`{"state":"changing"}`, string(body))
}

func (s *StateTestSuite) TestForwardResultJSON() {
	body, err := json.Marshal(ForwardResult{OK: false})
	s.Require().NoError(err)
	s.JSONEq(`{"ok":false}`, string(body))
}

func TestStateSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}
