package records

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizdash/internal/core"
)

func TestParseSelector(t *testing.T) {
	cases := []struct {
		in   string
		want Selector
	}{
		{``, Selector{}},
		{`Filter(Users, [username] = "anna")`, Selector{Field: "username", Value: "anna"}},
		{`[status] = "Open"`, Selector{Field: "status", Value: "Open"}},
		{`region = North`, Selector{Field: "region", Value: "North"}},
		{`  [Full Name]="Anna B"  `, Selector{Field: "Full Name", Value: "Anna B"}},
	}
	for _, tc := range cases {
		got, err := ParseSelector(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseSelector("no equals here")
	assert.Error(t, err)
}

func TestSelectorMatch(t *testing.T) {
	sel := Selector{Field: "username", Value: "Anna"}
	assert.True(t, sel.Match(core.Row{"Username": "anna"}))
	assert.False(t, sel.Match(core.Row{"username": "luca"}))
	assert.True(t, Selector{}.Match(core.Row{}))
}

func TestSelectorForRoundTrips(t *testing.T) {
	s, err := ParseSelector(SelectorFor(TableUsers, "email", "a@b.c"))
	require.NoError(t, err)
	assert.Equal(t, Selector{Field: "email", Value: "a@b.c"}, s)

	for _, v := range []string{`o"neil`, `"quoted"`, `a""b`, `"`, ``} {
		s, err := ParseSelector(SelectorFor(TableUsers, "username", v))
		require.NoError(t, err, v)
		assert.Equal(t, Selector{Field: "username", Value: v}, s, v)
	}
}

type stubFinder struct {
	rows []core.Row
	err  error
}

func (s stubFinder) Find(context.Context, string, string) ([]core.Row, error) { return s.rows, s.err }

func TestLoadNormalizes(t *testing.T) {
	got, err := Load(context.Background(), stubFinder{rows: []core.Row{{"amount": "5"}}}, TableExpenses, "", core.NormalizeExpense)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got[0].Amount)

	boom := errors.New("boom")
	_, err = Load(context.Background(), stubFinder{err: boom}, TableExpenses, "", core.NormalizeExpense)
	assert.ErrorIs(t, err, boom)
}

func TestRemoteErrorWrapsFailure(t *testing.T) {
	err := &RemoteError{Table: TableUsers, Action: ActionFind, Status: 500, Message: "down"}
	assert.ErrorIs(t, err, ErrRemoteFailure)
	assert.Contains(t, err.Error(), "status 500")
}
