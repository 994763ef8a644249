package extraction

import "testing"

func TestParseEntityAndRelationshipRecords(t *testing.T) {
	out := `("entity"|Tom Hardy|ACTOR|played Eames)##("entity"|Inception|MOVIE|a heist film)##` +
		`("relationship"|Tom Hardy|ACTOR|Inception|MOVIE|appeared in|8)##<END>`

	entities, relationships := Parse(out)
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if entities[0].Name != "Tom Hardy" || entities[0].Type != "ACTOR" {
		t.Fatalf("got %+v", entities[0])
	}
	if len(relationships) != 1 {
		t.Fatalf("got %d relationships, want 1", len(relationships))
	}
	rel := relationships[0]
	if rel.SourceName != "Tom Hardy" || rel.TargetName != "Inception" {
		t.Fatalf("got %+v", rel)
	}
	if rel.Strength != 8 {
		t.Fatalf("got strength %v (%T), want int 8", rel.Strength, rel.Strength)
	}
}

func TestParseLegacyRelationshipFormat(t *testing.T) {
	out := `("relationship"|Tom Hardy|Inception|played a role in|7.5)##<END>`
	_, relationships := Parse(out)
	if len(relationships) != 1 {
		t.Fatalf("got %d relationships, want 1", len(relationships))
	}
	rel := relationships[0]
	if rel.SourceType != "" || rel.TargetType != "" {
		t.Fatalf("legacy format should have empty types, got %+v", rel)
	}
	if rel.Strength != 7.5 {
		t.Fatalf("got strength %v, want 7.5", rel.Strength)
	}
}

func TestParseSkipsMalformedRecords(t *testing.T) {
	out := `("entity"|only|two fields)##("entity"|Tom Hardy|ACTOR|played Eames)`
	entities, _ := Parse(out)
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1 (malformed record dropped)", len(entities))
	}
}

func TestParseEmptyInput(t *testing.T) {
	entities, relationships := Parse("   ")
	if entities != nil || relationships != nil {
		t.Fatalf("expected nil, nil for empty input")
	}
}

func TestParseStrengthCoercion(t *testing.T) {
	if got := coerceStrength("8"); got != 8 {
		t.Fatalf("got %v (%T), want int 8", got, got)
	}
	if got := coerceStrength("8.5"); got != 8.5 {
		t.Fatalf("got %v (%T), want float64 8.5", got, got)
	}
	if got := coerceStrength("high"); got != "high" {
		t.Fatalf("got %v, want raw string", got)
	}
}

func TestParseSemicolonDelimitedFallback(t *testing.T) {
	out := `entity;Tom Hardy;ACTOR;played Eames`
	entities, _ := Parse(out)
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(entities))
	}
}
