package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// loadBatchSize bounds each bulk insert during ingestion.
const loadBatchSize = 500

// questionColumns and answerColumns are the dataset header names recognized
// during ingestion, in preference order.
var (
	questionColumns = []string{"question_title", "question"}
	answerColumns   = []string{"best_answer", "answer"}
)

// LoadCSV ingests question/answer pairs from a CSV dataset into the corpus
// table. The header row is matched against the recognized column names;
// without a header, column 1 is the question and column 2 the answer.
// limit > 0 caps the number of ingested rows. Returns the row count loaded.
func (s *Store) LoadCSV(ctx context.Context, path string, limit int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	first, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read dataset: %w", err)
	}

	qCol, aCol, hasHeader := detectColumns(first)

	var (
		batch  []QA
		loaded int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.db.WithContext(ctx).Create(&batch).Error; err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	appendRow := func(record []string) {
		if qCol >= len(record) || aCol >= len(record) {
			return
		}
		q := strings.TrimSpace(record[qCol])
		a := strings.TrimSpace(record[aCol])
		if q == "" || a == "" {
			return
		}
		batch = append(batch, QA{Question: q, ReferenceAnswer: a})
		loaded++
	}

	if !hasHeader {
		appendRow(first)
	}

	for {
		if limit > 0 && loaded >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return loaded, err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("skipping malformed record", zap.Error(err))
			continue
		}
		appendRow(record)

		if len(batch) >= loadBatchSize {
			if err := flush(); err != nil {
				return loaded - len(batch), err
			}
		}
	}
	if err := flush(); err != nil {
		return loaded - len(batch), err
	}

	s.logger.Info("corpus loaded",
		zap.String("path", path),
		zap.Int("rows", loaded),
	)
	return loaded, nil
}

// detectColumns resolves the question and answer column indexes. When the
// first record matches no known header name it is treated as data with the
// original dataset's positional layout (question in column 1, answer in 2).
func detectColumns(first []string) (qCol, aCol int, hasHeader bool) {
	norm := make([]string, len(first))
	for i, h := range first {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}

	qCol, aCol = -1, -1
	for _, name := range questionColumns {
		for i, h := range norm {
			if h == name {
				qCol = i
				break
			}
		}
		if qCol >= 0 {
			break
		}
	}
	for _, name := range answerColumns {
		for i, h := range norm {
			if h == name {
				aCol = i
				break
			}
		}
		if aCol >= 0 {
			break
		}
	}

	if qCol >= 0 && aCol >= 0 {
		return qCol, aCol, true
	}

	// headerless layout: id, question, answer
	if len(first) >= 3 {
		return 1, 2, false
	}
	return 0, 1, false
}
