package excel

import (
	"context"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
)

type ParsingStrategy interface {
	Parse(ctx context.Context, data []byte) ([]model.ImportRow, error)
	ValidateRow(ctx context.Context, row model.ImportRow) error
}

type ExcelStrategy struct {
	parser    *Parser
	validator *Validator
}

func NewExcelStrategy() ParsingStrategy {
	return &ExcelStrategy{
		parser:    NewParser(),
		validator: NewValidator(),
	}
}

func (s *ExcelStrategy) Parse(ctx context.Context, data []byte) ([]model.ImportRow, error) {
	return s.parser.Parse(ctx, data)
}

func (s *ExcelStrategy) ValidateRow(ctx context.Context, row model.ImportRow) error {
	return s.validator.ValidateRow(ctx, row)
}
