package model

import (
	"database/sql"
	"time"
)

// Diet is a weekly menu image for one cafeteria.
type Diet struct {
	ID             int       `db:"id"`
	PostTitle      string    `db:"post_title"`
	PostCreateDate time.Time `db:"post_create_date"`
	StartDate      time.Time `db:"start_date"`
	CafeteriaID    int       `db:"cafeteria_id"`
	ImgURL         string    `db:"img_url"`
	ImgPath        string    `db:"img_path"`
}

// Cafeteria is seeded reference data.
type Cafeteria struct {
	ID             int            `db:"id"`
	Location       string         `db:"location"`
	Address        sql.NullString `db:"address"`
	Phone          sql.NullString `db:"phone"`
	BreakfastStart sql.NullString `db:"breakfast_start_time"`
	BreakfastEnd   sql.NullString `db:"breakfast_end_time"`
	LunchStart     sql.NullString `db:"lunch_start_time"`
	LunchEnd       sql.NullString `db:"lunch_end_time"`
	DinnerStart    sql.NullString `db:"dinner_start_time"`
	DinnerEnd      sql.NullString `db:"dinner_end_time"`
}
