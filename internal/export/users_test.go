package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteUsersWorkbook(t *testing.T) {
	age := 6
	dob := time.Date(2019, 4, 12, 0, 0, 0, 0, time.UTC)
	registered := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	users := []*models.User{
		{ID: "u1", FirstName: "Avery", LastName: "Singh", Email: "avery@example.com", Phone: "613-555-0101", City: "Ottawa", Role: models.RoleUser, CreatedAt: registered},
		{ID: "u2", FirstName: "Morgan", LastName: "Roy", Email: "morgan@example.com", Role: models.RoleUser, CreatedAt: registered},
	}
	children := map[string][]*models.Child{
		"u1": {
			{ID: 10, UserID: "u1", Name: "Kai", Age: &age, DateOfBirth: &dob, HearingLossType: "Bilateral", EquipmentType: "Cochlear Implant"},
			{ID: 11, UserID: "u1", Name: "Rin"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteUsersWorkbook(&buf, users, children))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{UsersSheet, ChildrenSheet}, f.GetSheetList())

	userRows, err := f.GetRows(UsersSheet)
	require.NoError(t, err)
	require.Len(t, userRows, 3)
	assert.Equal(t, userHeaders, userRows[0])
	assert.Equal(t, "u1", userRows[1][0])
	assert.Equal(t, "2025-01-15", userRows[1][11])
	assert.Equal(t, "2", userRows[1][12])
	assert.Equal(t, "0", userRows[2][12])

	childRows, err := f.GetRows(ChildrenSheet)
	require.NoError(t, err)
	require.Len(t, childRows, 3)
	assert.Equal(t, childHeaders, childRows[0])
	assert.Equal(t, []string{"10", "Kai", "6", "2019-04-12", "Bilateral", "Cochlear Implant"}, childRows[1][:6])
	assert.Equal(t, "Avery", childRows[1][9])
	assert.Equal(t, "Ottawa", childRows[1][13])
}

func TestWriteUsersWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUsersWorkbook(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(UsersSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
