package fields

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDString(t *testing.T) {
	assert.Equal(t, "bank_code", BankCode.String())
	assert.Equal(t, "branch_name", BranchName.String())
	assert.Equal(t, "BranchName", BranchName.Label())
	assert.Equal(t, "field(9)", ID(9).String())
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{"bank_code", BankCode},
		{"BankName", BankName},
		{" branch_code ", BranchCode},
		{"BRANCHNAME", BranchName},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseID("account")
	require.Error(t, err)
}

func TestIDJSON(t *testing.T) {
	b, err := json.Marshal(map[string]ID{"f": BranchCode})
	require.NoError(t, err)
	assert.JSONEq(t, `{"f":"branch_code"}`, string(b))

	var out struct{ F ID }
	require.NoError(t, json.Unmarshal([]byte(`{"F":"bank_name"}`), &out))
	assert.Equal(t, BankName, out.F)
}

func TestAllOrder(t *testing.T) {
	assert.Equal(t, []ID{BankCode, BankName, BranchCode, BranchName}, All)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, KindDigits, DefaultKind(BankCode))
	assert.Equal(t, KindText, DefaultKind(BankName))
	assert.Equal(t, []string{"eng"}, DefaultLanguages(BranchCode))
	assert.Equal(t, []string{"jpn"}, DefaultLanguages(BranchName))
}

func TestParseRect(t *testing.T) {
	r, err := ParseRect("10, 20,300,40")
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 10, Y: 20, Width: 300, Height: 40}, r)
	assert.Equal(t, "10,20,300,40", r.String())

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "1,2,3,4,5"} {
		_, err := ParseRect(bad)
		assert.Error(t, err, bad)
	}
}

func TestRectUnmarshalText(t *testing.T) {
	var r Rect
	require.NoError(t, r.UnmarshalText([]byte("1,2,3,4")))
	assert.Equal(t, Rect{1, 2, 3, 4}, r)
	require.Error(t, r.UnmarshalText([]byte("nope")))

	require.NoError(t, r.UnmarshalText([]byte("  ")))
	assert.True(t, r.IsZero())
}

func TestRectValidate(t *testing.T) {
	require.NoError(t, Rect{0, 0, 1, 1}.Validate())
	require.Error(t, Rect{0, 0, 0, 10}.Validate())
	require.Error(t, Rect{0, 0, 10, -1}.Validate())
	require.Error(t, Rect{-1, 0, 10, 10}.Validate())
}

func TestRectWithinBounds(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 5}
	assert.True(t, r.WithinBounds(30, 15))
	assert.False(t, r.WithinBounds(29, 15))
	assert.False(t, r.WithinBounds(30, 14))
	assert.True(t, r.Image().Eq(r.Image()))
	assert.Equal(t, 20, r.Image().Dx())
}

func TestSpecValidate(t *testing.T) {
	s := NewSpec(BankCode, Rect{0, 0, 10, 10})
	require.NoError(t, s.Validate())

	s.Kind = "emoji"
	require.Error(t, s.Validate())

	s = NewSpec(BranchName, Rect{})
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch_name")
}
