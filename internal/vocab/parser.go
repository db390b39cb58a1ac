// Package vocab parses the frequency-ranked vocabulary CSV into an ordered
// lemma list. Pure function: file path in, lemmas out. No service dependencies.
package vocab

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads the vocabulary file and returns its unique lemmas in
// first-occurrence order. The first two rows are headers (description row,
// then column-header row); the lemma sits in the second column of each row
// after them. Rows with fewer than two columns are skipped.
func Parse(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary file: %w", err)
	}
	defer f.Close()

	lemmas, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}
	return lemmas, nil
}

// parse reads lemmas from r. A leading UTF-8 byte-order mark is discarded
// so exports from spreadsheet tools parse cleanly.
func parse(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1 // allow variable column count

	// Skip description and header rows.
	for i := 0; i < 2; i++ {
		if _, err := reader.Read(); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	seen := make(map[string]bool)
	var lemmas []string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if len(record) < 2 {
			continue
		}

		lemma := strings.TrimSpace(record[1])
		if lemma == "" || seen[lemma] {
			continue
		}

		seen[lemma] = true
		lemmas = append(lemmas, lemma)
	}

	return lemmas, nil
}
