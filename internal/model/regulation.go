package model

import (
	"database/sql"
	"time"
)

// Regulation types as they appear in board categories.
const (
	TypeLaw        = "법"
	TypeDecree     = "시행령"
	TypeRule       = "시행규칙"
	TypeCharter    = "정관"
	TypeOrdinance  = "조례"
	TypeDirective  = "예규"
	TypeRegulation = "규정"
	TypeBylaw      = "내규"
)

// RegulationTypes lists every recognized type.
var RegulationTypes = []string{
	TypeLaw, TypeDecree, TypeRule, TypeCharter,
	TypeOrdinance, TypeDirective, TypeRegulation, TypeBylaw,
}

// IsRegulationType reports whether s is a recognized type.
func IsRegulationType(s string) bool {
	for _, t := range RegulationTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Regulation is the stored, latest known version of a board document.
type Regulation struct {
	ID                  int            `db:"id"`
	Title               string         `db:"title"`
	Type                sql.NullString `db:"type"`
	CreateDate          time.Time      `db:"create_date"`
	UpdateDate          time.Time      `db:"update_date"`
	EnforceDate         sql.NullTime   `db:"enforce_date"`
	FileURL             sql.NullString `db:"file_url"`
	HTMLURL             sql.NullString `db:"html_url"`
	ConversionAttempts  int            `db:"conversion_attempts"`
	LastConversionError sql.NullString `db:"last_conversion_error"`
}

// RegulationPost is one scraped board post.
type RegulationPost struct {
	Type        string // empty when the category is not recognized
	Title       string
	CreateDate  time.Time
	EnforceDate *time.Time
	FileURL     string
	NextLink    string // previous post in board order, empty at the oldest
}

// UpsertResult is the outcome of synchronizing a post into the store.
type UpsertResult int

const (
	Unchanged UpsertResult = iota
	Inserted
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}
