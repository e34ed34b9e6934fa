package excel

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// Parser reads bulk observation sheets. The first worksheet must carry a
// header row with "station" and "observation_time" columns; every other
// column is treated as a variable name with float values.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, data []byte) ([]model.ImportRow, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ErrInvalidFileFormat
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	if len(rows) < 2 { // Header + at least one data row
		return nil, errors.ErrInvalidFileFormat
	}

	header := rows[0]
	stationCol, timeCol := -1, -1
	variableCols := make(map[int]string)
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		switch name {
		case "station":
			stationCol = i
		case "observation_time":
			timeCol = i
		case "":
		default:
			variableCols[i] = strings.TrimSpace(col)
		}
	}

	if stationCol < 0 || timeCol < 0 {
		return nil, fmt.Errorf("missing required columns: station, observation_time")
	}
	if len(variableCols) == 0 {
		return nil, fmt.Errorf("no variable columns found")
	}

	var parsed []model.ImportRow
	for i, row := range rows[1:] { // Skip header
		imp, err := p.parseRow(row, stationCol, timeCol, variableCols)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", i+2, err)
		}
		if imp == nil {
			continue // Blank row
		}
		parsed = append(parsed, *imp)
	}

	return parsed, nil
}

func (p *Parser) parseRow(row []string, stationCol, timeCol int, variableCols map[int]string) (*model.ImportRow, error) {
	getValue := func(idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	station := getValue(stationCol)
	localTime := getValue(timeCol)
	if station == "" && localTime == "" {
		return nil, nil
	}
	if station == "" {
		return nil, fmt.Errorf("station is required")
	}
	if localTime == "" {
		return nil, fmt.Errorf("observation_time is required")
	}

	var values []model.NamedValue
	for idx, variable := range variableCols {
		raw := getValue(idx)
		if raw == "" {
			continue // No reading for this variable
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %s", variable, raw)
		}
		values = append(values, model.NamedValue{Variable: variable, Value: value})
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("no measured values")
	}

	return &model.ImportRow{
		StationName: station,
		LocalTime:   localTime,
		Values:      values,
	}, nil
}
