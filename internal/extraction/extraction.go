// Package extraction implements the Extraction Stage (C3): parsing an
// LLM's delimited-record output into entity and relationship records.
package extraction

import (
	"strconv"
	"strings"

	"github.com/naeri-labs/filmgraph/internal/artifact"
)

// completionMarker terminates well-behaved LLM output and is stripped
// before parsing.
const completionMarker = "<END>"

// Parse splits output into entity and relationship records. The record
// delimiter is "##" if present, else "|", else newline. The tuple
// delimiter is "|" if present, else ";", else tab. Malformed records
// (wrong field count, unrecognized record type) are silently dropped;
// a record is never allowed to abort parsing of the rest of the batch.
func Parse(output string) ([]artifact.ExtractedEntity, []artifact.ExtractedRelationship) {
	output = strings.ReplaceAll(output, completionMarker, "")
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	recordDelim := "\n"
	switch {
	case strings.Contains(output, "##"):
		recordDelim = "##"
	case strings.Contains(output, "|"):
		recordDelim = "|"
	}

	tupleDelim := "\t"
	switch {
	case strings.Contains(output, "|"):
		tupleDelim = "|"
	case strings.Contains(output, ";"):
		tupleDelim = ";"
	}

	var entities []artifact.ExtractedEntity
	var relationships []artifact.ExtractedRelationship

	for _, raw := range strings.Split(output, recordDelim) {
		rec := strings.TrimSpace(raw)
		if rec == "" {
			continue
		}
		if strings.HasPrefix(rec, "(") && strings.HasSuffix(rec, ")") {
			rec = rec[1 : len(rec)-1]
		}
		rec = strings.TrimSpace(rec)

		tokens := splitTrim(rec, tupleDelim)
		if len(tokens) == 0 {
			continue
		}
		recType := strings.ToLower(strings.Trim(tokens[0], ` "'`))

		switch {
		case recType == "entity" && len(tokens) == 4:
			entities = append(entities, artifact.ExtractedEntity{
				Name:        tokens[1],
				Type:        tokens[2],
				Description: tokens[3],
			})
		case recType == "relationship" && len(tokens) == 7:
			relationships = append(relationships, artifact.ExtractedRelationship{
				SourceName:  tokens[1],
				SourceType:  tokens[2],
				TargetName:  tokens[3],
				TargetType:  tokens[4],
				Description: tokens[5],
				Strength:    coerceStrength(tokens[6]),
			})
		case recType == "relationship" && len(tokens) == 5:
			relationships = append(relationships, artifact.ExtractedRelationship{
				SourceName:  tokens[1],
				SourceType:  "",
				TargetName:  tokens[2],
				TargetType:  "",
				Description: tokens[3],
				Strength:    coerceStrength(tokens[4]),
			})
		}
	}
	return entities, relationships
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// coerceStrength mirrors the reference parser's numeric coercion: a
// parseable float collapses to an int when it has no fractional part and
// otherwise stays a float64; an unparseable token is kept as the raw
// string.
func coerceStrength(token string) interface{} {
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return token
	}
	if f == float64(int64(f)) {
		return int(f)
	}
	return f
}
