package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

// Path parameters and JSON bodies feed untrusted text into the ID parsers.
func FuzzParseComplaintID(f *testing.F) {
	for _, seed := range []string{
		"",
		uuid.NewString(),
		"00000000-0000-0000-0000-000000000000",
		"{6ba7b810-9dad-11d1-80b4-00c04fd430c8}",
		"urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"GOV-20260101-ABC123",
		"../../etc/passwd",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseComplaintID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Fatalf("nil id accepted from %q", input)
		}
		again, err := ParseComplaintID(id.String())
		if err != nil || again != id {
			t.Fatalf("canonical form %q does not parse back: %v", id, err)
		}
	})
}

func FuzzIDJSON(f *testing.F) {
	f.Add(`"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`)
	f.Add(`""`)
	f.Add(`null`)
	f.Add(`42`)

	f.Fuzz(func(t *testing.T, raw string) {
		var entity EntityID
		if err := json.Unmarshal([]byte(raw), &entity); err != nil {
			return
		}
		out, err := json.Marshal(entity)
		if err != nil {
			t.Fatalf("marshal %v: %v", entity, err)
		}
		var back EntityID
		if err := json.Unmarshal(out, &back); err != nil || back != entity {
			t.Fatalf("json round trip of %s changed the id: %v", out, err)
		}
	})
}
