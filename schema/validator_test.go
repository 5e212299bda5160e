package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestValidateNewsItemPayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"id":"gazette-991",
		"headline":"BREAKING: Govt announces new policy",
		"summary":"The cabinet approved the plan on Tuesday.",
		"category":"politics",
		"source_name":"Springfield Gazette",
		"source_url":"https://gazette.example/policy",
		"published_at":"2026-03-10T11:15:00Z",
		"image_url":"https://gazette.example/policy.jpg",
		"feed":{"name":"Gazette national","category":"national","country_scope":true},
		"sources":[
			{"source_name":"Reuters","source_url":"https://reuters.com/policy","published_at":"Tue, 10 Mar 2026 10:00:00 +0000"}
		]
	}`)

	item, err := ValidateNewsItemPayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	raw := item.ToRawItem()
	if raw.ID != "gazette-991" || raw.SourceName != "Springfield Gazette" {
		t.Fatalf("unexpected raw item: %+v", raw)
	}
	if !raw.PublishedAt.Equal(time.Date(2026, 3, 10, 11, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published_at: %s", raw.PublishedAt)
	}
	if len(raw.Sources) != 1 || !raw.Sources[0].PublishedAt.Equal(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected pre-attached sources: %+v", raw.Sources)
	}

	feed := item.FeedMeta()
	if feed.Name != "Gazette national" || feed.Category != "national" || !feed.CountryScope {
		t.Fatalf("unexpected feed meta: %+v", feed)
	}
}

func TestValidateNewsItemPayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"headline":"Missing source name"
	}`)

	if _, err := ValidateNewsItemPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for missing source_name")
	}
}

func TestValidateNewsItemPayload_UnknownField(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"headline":"Extra field",
		"source_name":"Wire",
		"score":42
	}`)

	if _, err := ValidateNewsItemPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for an unknown field")
	}
}

func TestValidateNewsItemPayload_WrongVersion(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v2","headline":"x","source_name":"Wire"}`)

	if _, err := ValidateNewsItemPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for payload_version v2")
	}
}

func TestValidateNewsItemPayload_EmptyHeadlineIsAccepted(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v1","headline":"   ","source_name":"Wire"}`)

	item, err := ValidateNewsItemPayload(payload)
	if err != nil {
		t.Fatalf("blank headlines are left to ingestion, got error: %v", err)
	}
	if item.ToRawItem().Headline != "" {
		t.Fatalf("expected trimmed headline")
	}
}

func TestValidateNewsItemPayload_BlankSourceName(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v1","headline":"Storm","source_name":"  "}`)

	_, err := ValidateNewsItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for blank source_name")
	}
	if !strings.Contains(err.Error(), "source_name must not be empty") {
		t.Fatalf("expected source_name semantic error, got: %v", err)
	}
}

func TestValidateNewsItemPayload_InvalidURL(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v1","headline":"Storm","source_name":"Wire","source_url":"not a url"}`)

	_, err := ValidateNewsItemPayload(payload)
	if err == nil || !strings.Contains(err.Error(), "source_url") {
		t.Fatalf("expected source_url error, got: %v", err)
	}
}

func TestValidateNewsItemPayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v1","headline":"Storm","source_name":"Wire"} {}`)

	if _, err := ValidateNewsItemPayload(payload); err == nil {
		t.Fatalf("expected trailing content to be rejected")
	}
}

func TestParsePublishedAt(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		name  string
		value *string
		want  time.Time
	}{
		{name: "nil", value: nil},
		{name: "blank", value: strPtr("  ")},
		{name: "rfc3339 offset", value: strPtr("2026-03-10T10:30:00+01:00"), want: want},
		{name: "rfc1123z", value: strPtr("Tue, 10 Mar 2026 09:30:00 +0000"), want: want},
		{name: "naive", value: strPtr("2026-03-10 09:30:00"), want: want},
		{name: "garbage", value: strPtr("last tuesday")},
	}

	for _, tc := range cases {
		if got := ParsePublishedAt(tc.value); !got.Equal(tc.want) {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestFeedMetaFallsBackToItem(t *testing.T) {
	t.Parallel()

	item := &NewsItem{Category: "sport", SourceName: "Wire"}
	meta := item.FeedMeta()
	if meta.Name != "Wire" || meta.Category != "sport" || meta.CountryScope {
		t.Fatalf("unexpected feed meta: %+v", meta)
	}
}

func strPtr(value string) *string {
	return &value
}

func TestToRawItemDerivesSummaryFromContent(t *testing.T) {
	t.Parallel()

	item := &NewsItem{
		Headline:   "Rates held steady",
		SourceName: "Wire",
		Content:    "  The central bank kept its main rate unchanged\n\nat 4% on Thursday.  ",
	}
	if got := item.ToRawItem().Summary; got != "The central bank kept its main rate unchanged at 4% on Thursday." {
		t.Fatalf("unexpected derived summary: %q", got)
	}

	item.Summary = "Feed summary wins."
	if got := item.ToRawItem().Summary; got != "Feed summary wins." {
		t.Fatalf("explicit summary should be kept, got %q", got)
	}
}
