package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validProfile() StudentProfile {
	return StudentProfile{
		UserID:         7,
		FirstName:      "Maria",
		LastName:       "Santos",
		EnrollmentYear: 2025,
		SchoolName:     "Inabanga High School",
		SchoolType:     "public",
		Municipality:   "Inabanga",
		Program:        "BS Information Technology",
		GPA:            89.1,
		ContactNumber:  "09171234567",
		HomeAddress:    "Poblacion, Inabanga, Bohol",
		Sex:            "female",
		Status:         StatusPending,
	}
}

func TestGPABoundsInclusive(t *testing.T) {
	for _, gpa := range []float64{0, 100, 89.1} {
		p := validProfile()
		p.GPA = gpa
		require.NoError(t, p.BeforeSave(nil), "gpa %v", gpa)
	}
	for _, gpa := range []float64{-1, -0.01, 100.01, 101} {
		p := validProfile()
		p.GPA = gpa
		require.ErrorIs(t, p.BeforeSave(nil), ErrGPARange, "gpa %v", gpa)
	}
}

func TestStatusValidation(t *testing.T) {
	require.True(t, ValidStatus(StatusPending))
	require.True(t, ValidStatus(StatusApproved))
	require.True(t, ValidStatus(StatusRejected))
	require.False(t, ValidStatus("archived"))
	require.False(t, ValidStatus(""))

	p := validProfile()
	p.Status = "archived"
	require.ErrorIs(t, p.BeforeSave(nil), ErrBadStatus)

	// empty status is left for the column default
	p.Status = ""
	require.NoError(t, p.BeforeSave(nil))
}
