package csvdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

var (
	// ErrUndecodable is returned when no candidate encoding can decode the file.
	ErrUndecodable = errors.New("could not decode CSV file with common encodings")
	// ErrEmptyFile is returned for a file without a header line.
	ErrEmptyFile = errors.New("CSV file is empty")
	// ErrMalformed is returned when a row does not fit the header's delimiter layout.
	ErrMalformed = errors.New("malformed CSV structure")
)

// Encoding is a candidate text encoding for review exports.
type Encoding struct {
	Name string
	// strict encodings reject input that is not valid in them; single-byte
	// charmaps accept every byte.
	strict bool
	enc    encoding.Encoding
}

// Encodings are tried in order until one decodes the file.
var Encodings = []Encoding{
	{Name: "utf-8", strict: true, enc: xunicode.UTF8BOM},
	{Name: "latin-1", enc: charmap.ISO8859_1},
	{Name: "cp1252", enc: charmap.Windows1252},
}

// Decode converts raw bytes to a UTF-8 string.
func (e Encoding) Decode(raw []byte) (string, error) {
	if e.strict && !utf8.Valid(raw) {
		return "", fmt.Errorf("invalid %s byte sequence", e.Name)
	}
	out, err := e.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", e.Name, err)
	}
	return string(out), nil
}

// decode tries every candidate encoding and returns the first successful result.
func decode(raw []byte) (string, string, error) {
	for _, e := range Encodings {
		text, err := e.Decode(raw)
		if err != nil {
			continue
		}
		return text, e.Name, nil
	}
	return "", "", ErrUndecodable
}

// ReadFile loads the delimited file at path into a Table.
func ReadFile(path string, delim rune) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	defer file.Close()

	return ReadTable(file, delim)
}

// ReadTable loads the whole of r into a Table, decoding it with the first candidate
// encoding that accepts the bytes. The chosen encoding is recorded on the Table.
func ReadTable(r io.Reader, delim rune) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	text, encName, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	table, err := parse(text, delim, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	table.Encoding = encName
	return table, nil
}

// parse reads a header and up to limit data rows (all rows when limit < 0).
func parse(text string, delim rune, limit int) (*Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	table := &Table{Columns: header, Rows: [][]string{}}
	for limit < 0 || len(table.Rows) < limit {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(table.Rows)+1, err)
		}

		if len(record) > len(header) {
			return nil, fmt.Errorf("%w: row %d: expected %d fields, saw %d",
				ErrMalformed, len(table.Rows)+1, len(header), len(record))
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}
