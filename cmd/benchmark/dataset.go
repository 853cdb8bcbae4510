package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// Record is one labelled row of the heart failure prediction dataset.
type Record struct {
	Line         int
	Params       domain.HealthParameters
	HeartDisease bool
}

var requiredColumns = []string{
	"age", "sex", "chestpaintype", "restingbp", "cholesterol", "fastingbs",
	"restingecg", "maxhr", "exerciseangina", "oldpeak", "st_slope", "heartdisease",
}

func readDatasetFile(path string, limit int) ([]Record, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	return readDataset(file, limit)
}

// readDataset parses the CSV and returns the usable records plus the number
// of rows skipped as malformed.
func readDataset(r io.Reader, limit int) ([]Record, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", name)
		}
	}

	var (
		records []Record
		skipped int
		line    = 1
	)
	for {
		row, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		rec, err := parseRow(row, col)
		if err != nil {
			skipped++
			continue
		}
		rec.Line = line
		records = append(records, rec)

		if limit > 0 && len(records) >= limit {
			break
		}
	}

	return records, skipped, nil
}

func parseRow(row []string, col map[string]int) (Record, error) {
	field := func(name string) string { return strings.TrimSpace(row[col[name]]) }

	var rec Record
	ints := map[string]*int{
		"age":         &rec.Params.Age,
		"restingbp":   &rec.Params.RestingBP,
		"cholesterol": &rec.Params.Cholesterol,
		"maxhr":       &rec.Params.MaxHR,
	}
	for name, dst := range ints {
		n, err := strconv.Atoi(field(name))
		if err != nil {
			return rec, fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}

	oldpeak, err := strconv.ParseFloat(field("oldpeak"), 64)
	if err != nil {
		return rec, fmt.Errorf("oldpeak: %w", err)
	}
	rec.Params.Oldpeak = oldpeak

	rec.Params.Sex = domain.Sex(field("sex"))
	rec.Params.ChestPainType = domain.ChestPainType(field("chestpaintype"))
	rec.Params.FastingBS = domain.FastingBS(field("fastingbs"))
	rec.Params.RestingECG = domain.RestingECG(field("restingecg"))
	rec.Params.ExerciseAngina = domain.ExerciseAngina(field("exerciseangina"))
	rec.Params.STSlope = domain.STSlope(field("st_slope"))

	switch field("heartdisease") {
	case "1":
		rec.HeartDisease = true
	case "0":
	default:
		return rec, fmt.Errorf("heartdisease must be 0 or 1")
	}

	return rec, nil
}
