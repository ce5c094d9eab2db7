// Package export renders the admin user listing as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	UsersSheet    = "Users"
	ChildrenSheet = "Children"
	dateLayout    = "2006-01-02"
)

var (
	userHeaders = []string{
		"ID", "First Name", "Middle Name", "Last Name", "Email", "Phone", "Address",
		"City", "Province", "Postal Code", "Role", "Registration Date", "Number of Children",
	}
	childHeaders = []string{
		"Child ID", "Child Name", "Age", "Date of Birth", "Hearing Loss Type", "Equipment Type",
		"Siblings Names", "Chapter Location", "Parent ID", "Parent First Name", "Parent Last Name",
		"Parent Email", "Parent Phone", "Parent City",
	}
)

// WriteUsersWorkbook writes one row per user to the Users sheet and one row
// per child, with its parent's contact details, to the Children sheet.
func WriteUsersWorkbook(w io.Writer, users []*models.User, children map[string][]*models.Child) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", UsersSheet); err != nil {
		return fmt.Errorf("failed to name users sheet: %w", err)
	}
	if _, err := f.NewSheet(ChildrenSheet); err != nil {
		return fmt.Errorf("failed to create children sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, UsersSheet, 1, toCells(userHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, ChildrenSheet, 1, toCells(childHeaders)); err != nil {
		return err
	}
	for sheet, n := range map[string]int{UsersSheet: len(userHeaders), ChildrenSheet: len(childHeaders)} {
		last, _ := excelize.CoordinatesToCellName(n, 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}

	childRow := 2
	for i, u := range users {
		kids := children[u.ID]

		if err := writeRow(f, UsersSheet, i+2, []any{
			u.ID, u.FirstName, u.MiddleName, u.LastName, u.Email, u.Phone, u.Address,
			u.City, u.Province, u.PostalCode, u.Role, u.CreatedAt.Format(dateLayout), len(kids),
		}); err != nil {
			return err
		}

		for _, c := range kids {
			if err := writeRow(f, ChildrenSheet, childRow, []any{
				c.ID, c.Name, optionalInt(c.Age), optionalDate(c.DateOfBirth), c.HearingLossType, c.EquipmentType,
				c.SiblingsNames, c.ChapterLocation, u.ID, u.FirstName, u.LastName,
				u.Email, u.Phone, u.City,
			}); err != nil {
				return err
			}
			childRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(headers []string) []any {
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	return cells
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
