package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/silverlake/silverlake/pkg/record"
)

// ErrMalformedExtract marks a file that cannot be decoded. It fails that
// file only; the run moves on to the next one.
var ErrMalformedExtract = errors.New("malformed extract")

// decodeCatalog decodes a JSON array of product objects. The array must
// be the only value in data.
func decodeCatalog(data []byte) ([]record.Product, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: decode catalog: empty document", ErrMalformedExtract)
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: decode catalog: document is not an array", ErrMalformedExtract)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var docs []any
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %v", ErrMalformedExtract, err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %v", ErrMalformedExtract, err)
	}
	products := make([]record.Product, 0, len(docs))
	for i, doc := range docs {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: catalog element %d is %T, not an object", ErrMalformedExtract, i, doc)
		}
		products = append(products, record.CleanProduct(record.Raw(obj)))
	}
	return products, nil
}

// decodeCatalogLines decodes one product object per line. Blank lines are
// skipped.
func decodeCatalogLines(data []byte) ([]record.Product, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var products []record.Product
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedExtract, line, err)
		}
		if obj == nil {
			return nil, fmt.Errorf("%w: line %d: not an object", ErrMalformedExtract, line)
		}
		if err := expectEOF(dec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedExtract, line, err)
		}
		products = append(products, record.CleanProduct(record.Raw(obj)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExtract, err)
	}
	return products, nil
}

// expectEOF reports data left in dec after the first value.
func expectEOF(dec *json.Decoder) error {
	var extra any
	err := dec.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("trailing data: %v", err)
	}
	return errors.New("trailing data after document")
}

// readSales decodes a delimited sales extract and hands cleaned rows to
// fn in chunks of at most chunk rows. It returns the number of data rows
// read. Errors returned by fn are passed through unchanged.
func readSales(data []byte, comma rune, chunk int, fn func([]record.Sale) error) (int, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: header: %v", ErrMalformedExtract, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	read := 0
	buf := make([]record.Sale, 0, chunk)
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return read, fmt.Errorf("%w: %v", ErrMalformedExtract, err)
		}
		raw := make(record.Raw, len(header))
		for i, name := range header {
			if i < len(fields) {
				raw[name] = fields[i]
			}
		}
		buf = append(buf, record.CleanSale(raw))
		read++

		if len(buf) == chunk {
			if err := fn(buf); err != nil {
				return read, err
			}
			buf = make([]record.Sale, 0, chunk)
		}
	}
	if len(buf) > 0 {
		if err := fn(buf); err != nil {
			return read, err
		}
	}
	return read, nil
}
