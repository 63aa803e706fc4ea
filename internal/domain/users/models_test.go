package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(v string) *string { return &v }

func TestUserStringForm(t *testing.T) {
	cases := []struct {
		name string
		user User
		want string
	}{
		{"name and persal", User{FirstName: "Jane", LastName: "Doe", Username: "jdoe", PersalNumber: strPtr("12345678")}, "Jane Doe (12345678)"},
		{"no persal", User{FirstName: "Jane", LastName: "Doe", Username: "jdoe"}, "Jane Doe (jdoe)"},
		{"blank persal", User{FirstName: "Jane", Username: "jdoe", PersalNumber: strPtr("  ")}, "Jane (jdoe)"},
		{"no name", User{Username: "jdoe", PersalNumber: strPtr("999")}, "jdoe (999)"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.user.String())
		})
	}
}

func TestProfileComplete(t *testing.T) {
	assert.False(t, User{}.ProfileComplete())
	assert.False(t, User{EmployeeID: strPtr("E1")}.ProfileComplete())
	assert.False(t, User{EmployeeID: strPtr("E1"), PersalNumber: strPtr("")}.ProfileComplete())
	assert.True(t, User{EmployeeID: strPtr("E1"), PersalNumber: strPtr("123")}.ProfileComplete())
}

func TestDefaultSalaryLevels(t *testing.T) {
	levels, err := DefaultSalaryLevels()
	require.NoError(t, err)
	require.Len(t, levels, 16)
	for i, l := range levels {
		assert.Equal(t, i+1, l.Level)
		assert.NotEmpty(t, l.TypicalTitles)
	}
	assert.Equal(t, "Level 13 - Director", levels[12].String())
}
