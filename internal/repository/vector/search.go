package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/epirag/epirag/internal/domain"
)

// Search runs a KNN cosine search via FT.SEARCH, optionally pre-filtered
// to an exact country tag match. Results come back in descending
// similarity order. Entries lacking a score field keep similarity 0.0.
func (s *Store) Search(
	ctx context.Context, vector []float32, country string, limit int,
) ([]domain.VectorHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", limit, fieldVector)
	queryStr := "*=>" + knnPart
	if country != "" {
		queryStr = fmt.Sprintf("(@%s:{%s})=>%s", fieldCountry, tagEscaper.Replace(country), knnPart)
	}

	returnFields := []string{fieldScore, fieldDocumentID, fieldSection, fieldCountry, fieldCharCount}

	args := []string{indexName, queryStr,
		"RETURN", strconv.Itoa(len(returnFields))}
	args = append(args, returnFields...)
	args = append(args,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(limit),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("%w: knn search: %w", domain.ErrVectorStoreUnavailable, err)
	}

	return parseKNNResult(raw)
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(raw []rueidis.RedisMessage) ([]domain.VectorHit, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]domain.VectorHit, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldMsgs)

		hit := domain.VectorHit{
			ChunkID: strings.TrimPrefix(key, chunkKeyPrefix),
			Payload: payloadFromFields(fields),
		}
		if scoreStr, ok := fields[fieldScore]; ok {
			if distance, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				hit.Similarity = max(0, 1.0-distance) // cosine distance → similarity, clamped to [0,1]
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// payloadFromFields maps sparse hash fields onto the fixed payload
// shape. Absent fields keep their zero value.
func payloadFromFields(fields map[string]string) domain.Payload {
	p := domain.Payload{
		DocumentID: fields[fieldDocumentID],
		Section:    domain.Section(fields[fieldSection]),
		Country:    fields[fieldCountry],
	}
	if v, err := strconv.Atoi(fields[fieldCharCount]); err == nil {
		p.CharCount = v
	}
	return p
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// tagEscaper escapes the characters TAG field syntax treats specially.
var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)
