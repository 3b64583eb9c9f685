// Package csv turns participant CSV files into candidate rows.
//
// The grammar is deliberately forgiving because the files come from
// spreadsheet exports made at the reception desk:
//
//   - a UTF-8 byte-order mark is dropped and invalid UTF-8 becomes U+FFFD
//   - blank lines are skipped
//   - input is read line by line; RFC 4180 quoting is honoured within a line
//   - a line with stray or unterminated quotes is split on the delimiter as is
//   - each field is trimmed, then one leading and one trailing ' or " is removed
//   - a first line whose first field mentions a header word is a header
//   - a line whose first field is empty is skipped
//
// Columns are name, company, memo. Missing columns are empty and extra
// columns are ignored.
package csv

import (
	"bufio"
	enccsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultHeaderWords mark a header line.
var DefaultHeaderWords = []string{"name", "氏名", "名前"}

// Row is one candidate participant. Line is the 1-based source line.
type Row struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Memo    string `json:"memo"`
	Line    int    `json:"line"`
}

// Options configure the grammar.
type Options struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune

	// HeaderWords are matched case-insensitively against the first field of
	// the first record. Nil means DefaultHeaderWords.
	HeaderWords []string
}

// Parser reads participant rows.
type Parser struct {
	delimiter   rune
	headerWords []string
}

// NewParser returns a parser for opts.
func NewParser(opts Options) *Parser {
	p := &Parser{delimiter: opts.Delimiter}
	if p.delimiter == 0 {
		p.delimiter = ','
	}
	words := opts.HeaderWords
	if words == nil {
		words = DefaultHeaderWords
	}
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			p.headerWords = append(p.headerWords, w)
		}
	}
	return p
}

// Rows returns the rows of r in file order. The sequence stops after the
// first error.
func (p *Parser) Rows(r io.Reader) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		// BOMOverride strips a UTF-8 BOM (and decodes UTF-16 if the file
		// carries a UTF-16 BOM); the UTF-8 decoder replaces invalid bytes.
		decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
		br := bufio.NewReader(decoded)

		first := true
		for lineNo := 1; ; lineNo++ {
			line, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				yield(Row{}, fmt.Errorf("read csv: %w", err))
				return
			}
			eof := err != nil

			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if strings.TrimSpace(line) != "" {
				record := p.split(line)
				row := Row{
					Name:    field(record, 0),
					Company: field(record, 1),
					Memo:    field(record, 2),
					Line:    lineNo,
				}

				isHeader := first && p.isHeader(row.Name)
				first = false
				if !isHeader && row.Name != "" {
					if !yield(row, nil) {
						return
					}
				}
			}

			if eof {
				return
			}
		}
	}
}

// split tokenizes one line. Quoted fields never span a line feed: a line
// the tokenizer rejects, such as one with an unterminated quote, is split
// on the delimiter as is.
func (p *Parser) split(line string) []string {
	cr := enccsv.NewReader(strings.NewReader(line))
	cr.Comma = p.delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	record, err := cr.Read()
	if err != nil {
		return strings.Split(line, string(p.delimiter))
	}
	return record
}

func (p *Parser) isHeader(firstField string) bool {
	f := strings.ToLower(firstField)
	for _, w := range p.headerWords {
		if strings.Contains(f, w) {
			return true
		}
	}
	return false
}

// field returns column i trimmed and with one surrounding quote removed.
func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return trimQuote(strings.TrimSpace(record[i]))
}

func trimQuote(s string) string {
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if s != "" && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return s
}

// Collect reads every row of seq.
func Collect(seq iter.Seq2[Row, error]) ([]Row, error) {
	var rows []Row
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Preview reads at most limit rows of seq.
func Preview(seq iter.Seq2[Row, error], limit int) ([]Row, error) {
	rows := make([]Row, 0, max(limit, 0))
	if limit <= 0 {
		return rows, nil
	}
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}
