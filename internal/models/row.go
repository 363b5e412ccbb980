package models

import (
	"math"
	"strconv"
	"strings"
)

// Column positions of the journal table. The order is shared by every backend.
const (
	ColDate = iota
	ColTime
	ColKind
	ColMenu
	ColCalories
	ColProtein
	ColFat
	ColCarbs
	ColAdvice
	ColScore
	ColPurine

	NumColumns
)

// EvaluationLabel is written into the menu column of evaluation rows
const EvaluationLabel = "Daily summary"

// Header is the canonical first row of an empty table
var Header = Row{
	"date", "time", "mealKind", "menuName", "calories",
	"protein_g", "fat_g", "carbs_g", "advice", "score", "purine_mg",
}

// Row is one line of the journal table in column order
type Row []string

// Cell returns the value at col, or "" for short rows
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// IsHeader reports whether the row is the column header
func (r Row) IsHeader() bool {
	return r.Cell(ColDate) == Header[ColDate] && r.Cell(ColKind) == Header[ColKind]
}

// RowFromRecord lays a record out in column order. Evaluation rows leave the
// nutrition cells empty.
func RowFromRecord(rec MealRecord) Row {
	row := make(Row, NumColumns)
	row[ColDate] = rec.Date
	row[ColTime] = rec.Time
	row[ColKind] = string(rec.Kind)
	row[ColMenu] = rec.Menu
	row[ColAdvice] = rec.Advice
	row[ColScore] = strconv.Itoa(rec.Score)
	if !rec.IsEvaluation() {
		row[ColCalories] = formatNumber(rec.Calories)
		row[ColProtein] = formatNumber(rec.Protein)
		row[ColFat] = formatNumber(rec.Fat)
		row[ColCarbs] = formatNumber(rec.Carbs)
		row[ColPurine] = formatNumber(rec.Purine)
	}
	return row
}

// RecordFromRow decodes a stored row. Numeric cells that are empty or
// unreadable decode as 0 since historical rows may have been edited by hand.
func RecordFromRow(row Row) MealRecord {
	return MealRecord{
		Date:     strings.TrimSpace(row.Cell(ColDate)),
		Time:     strings.TrimSpace(row.Cell(ColTime)),
		Kind:     MealKind(strings.TrimSpace(row.Cell(ColKind))),
		Menu:     row.Cell(ColMenu),
		Calories: LenientNumber(row.Cell(ColCalories)),
		Protein:  LenientNumber(row.Cell(ColProtein)),
		Fat:      LenientNumber(row.Cell(ColFat)),
		Carbs:    LenientNumber(row.Cell(ColCarbs)),
		Purine:   LenientNumber(row.Cell(ColPurine)),
		Advice:   row.Cell(ColAdvice),
		Score:    int(math.Round(LenientNumber(row.Cell(ColScore)))),
	}
}

// LenientNumber parses a cell as a float, returning 0 for anything that is
// not a finite number.
func LenientNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
