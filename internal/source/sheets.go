package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsReader reads sources as value ranges of one Google spreadsheet.
type SheetsReader struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
}

// SheetsOptions configures NewSheetsReader. CredentialsFile takes
// precedence over APIKey.
type SheetsOptions struct {
	SpreadsheetID   string
	APIKey          string
	CredentialsFile string
	// Endpoint overrides the API base URL (tests).
	Endpoint string
}

// NewSheetsReader creates a read-only Sheets client.
func NewSheetsReader(ctx context.Context, opts SheetsOptions) (*SheetsReader, error) {
	if opts.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}

	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(opts.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsReadonlyScope),
		)
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	default:
		return nil, errors.New("sheets: an API key or credentials file is required")
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	return &SheetsReader{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: opts.SpreadsheetID,
	}, nil
}

// Fetch reads src.Range as formatted text.
func (r *SheetsReader) Fetch(ctx context.Context, src Source) (Grid, error) {
	resp, err := r.values.Get(r.spreadsheetID, src.Range).
		ValueRenderOption("FORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, &FetchError{Source: src.ID, Err: describeAPIError(err)}
	}
	return gridFromValues(resp.Values), nil
}

// gridFromValues converts the API's untyped cells to text.
// Missing cells stay missing; Cell() reads them as "".
func gridFromValues(values [][]interface{}) Grid {
	g := make(Grid, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			switch c := v.(type) {
			case nil:
				cells[j] = ""
			case string:
				cells[j] = c
			default:
				cells[j] = fmt.Sprint(c)
			}
		}
		g[i] = cells
	}
	return g
}

// describeAPIError shortens googleapi errors to status and reason.
func describeAPIError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	reasons := make([]string, 0, len(gerr.Errors))
	for _, item := range gerr.Errors {
		if item.Reason != "" {
			reasons = append(reasons, item.Reason)
		}
	}
	msg := gerr.Message
	if len(reasons) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(reasons, ", "))
	}
	return fmt.Errorf("sheets api status %d: %s: %w", gerr.Code, msg, err)
}
