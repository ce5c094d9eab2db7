package models

import "time"

type Child struct {
	ID              int64      `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	Age             *int       `json:"age,omitempty"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	HearingLossType string     `json:"hearing_loss_type,omitempty"`
	EquipmentType   string     `json:"equipment_type,omitempty"`
	SiblingsNames   string     `json:"siblings_names,omitempty"`
	ChapterLocation string     `json:"chapter_location,omitempty"`
}
