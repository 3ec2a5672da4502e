package quorum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Quorum
		wantErr bool
	}{
		{name: "majority of five", raw: "3/5", want: Quorum{Ack: 3, From: 5}},
		{name: "one of one", raw: "1/1", want: Quorum{Ack: 1, From: 1}},
		{name: "all of three", raw: "3/3", want: Quorum{Ack: 3, From: 3}},
		{name: "ack greater than from", raw: "5/3", wantErr: true},
		{name: "zero ack", raw: "0/2", wantErr: true},
		{name: "negative ack", raw: "-1/2", wantErr: true},
		{name: "not numbers", raw: "x/y", wantErr: true},
		{name: "missing from", raw: "2", wantErr: true},
		{name: "trailing separator", raw: "2/", wantErr: true},
		{name: "too many parts", raw: "1/2/3", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidQuorum)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDefaultFor(t *testing.T) {
	for n := 1; n <= 64; n++ {
		q := DefaultFor(n)
		assert.Equal(t, n/2+1, q.Ack, "ack for n=%d", n)
		assert.Equal(t, n, q.From, "from for n=%d", n)
		assert.GreaterOrEqual(t, q.Ack, 1)
		assert.LessOrEqual(t, q.Ack, q.From)
		assert.NoError(t, q.Validate(n))
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Quorum{Ack: 2, From: 3}.Validate(3))
	assert.ErrorIs(t, Quorum{Ack: 2, From: 4}.Validate(3), ErrInvalidQuorum)
	assert.ErrorIs(t, Quorum{Ack: 0, From: 1}.Validate(3), ErrInvalidQuorum)
	assert.ErrorIs(t, Quorum{Ack: 3, From: 2}.Validate(3), ErrInvalidQuorum)
}

func TestStringRoundTrip(t *testing.T) {
	q := Quorum{Ack: 2, From: 3}
	assert.Equal(t, "2/3", q.String())

	parsed, err := Parse(q.String())
	require.NoError(t, err)
	assert.Equal(t, q, parsed)
}
