package core

import "testing"

func TestParseCriteria(t *testing.T) {
	c, err := ParseCriteria(`{"from":"boss","hasAttachment":true,"olderThan":"7d"}`)
	if err != nil {
		t.Fatalf("ParseCriteria() error = %v", err)
	}
	if c == nil || c.From != "boss" || !c.HasAttachment {
		t.Fatalf("unexpected criteria %+v", c)
	}
}

func TestParseCriteriaEmptyIsNil(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "{}", `{"from":""}`, `{"unknown":1}`} {
		c, err := ParseCriteria(raw)
		if err != nil {
			t.Fatalf("ParseCriteria(%q) error = %v", raw, err)
		}
		if c != nil {
			t.Fatalf("ParseCriteria(%q) = %+v, want nil", raw, c)
		}
	}
}

func TestParseCriteriaInvalid(t *testing.T) {
	for _, raw := range []string{`{"from":`, `{"from":42}`, `{"hasAttachment":"yes"}`, `["from"]`, `"boss"`} {
		c, err := ParseCriteria(raw)
		if err == nil {
			t.Fatalf("ParseCriteria(%q) expected error", raw)
		}
		if c != nil {
			t.Fatalf("ParseCriteria(%q) returned criteria on error", raw)
		}
	}
}

func TestEncodeCriteriaRoundTrip(t *testing.T) {
	raw, err := EncodeCriteria(&FilterCriteria{Subject: "invoice"})
	if err != nil {
		t.Fatalf("EncodeCriteria() error = %v", err)
	}
	c, err := ParseCriteria(raw)
	if err != nil || c == nil || c.Subject != "invoice" {
		t.Fatalf("round trip failed: %q %+v %v", raw, c, err)
	}

	empty, err := EncodeCriteria(nil)
	if err != nil || empty != "" {
		t.Fatalf("EncodeCriteria(nil) = %q, %v", empty, err)
	}
}
