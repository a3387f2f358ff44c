// Package payloadschema validates incoming article payloads against the
// embedded JSON schema before anything touches the database.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed article.schema.json
var articleSchemaJSON string

// Enrichment mirrors the optional enrichment block of the payload.
type Enrichment struct {
	Topics          []string `json:"topics,omitempty"`
	Sentiment       string   `json:"sentiment,omitempty"`
	Entities        []string `json:"entities,omitempty"`
	EngagementScore *float64 `json:"engagement_score,omitempty"`
}

// ArticlePayload is one validated ingestion payload.
type ArticlePayload struct {
	PayloadVersion string      `json:"payload_version"`
	Source         string      `json:"source"`
	URL            string      `json:"url"`
	Title          string      `json:"title"`
	Summary        *string     `json:"summary,omitempty"`
	BodyText       *string     `json:"body_text,omitempty"`
	BodyHTML       *string     `json:"body_html,omitempty"`
	Category       *string     `json:"category,omitempty"`
	PublishedAt    *string     `json:"published_at,omitempty"`
	Enrichment     *Enrichment `json:"enrichment,omitempty"`
}

// PublishedTime parses the optional publish timestamp. A nil return with nil
// error means the payload carried no date.
func (p *ArticlePayload) PublishedTime() (*time.Time, error) {
	if p == nil || p.PublishedAt == nil {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*p.PublishedAt))
	if err != nil {
		return nil, fmt.Errorf("published_at must be RFC3339: %w", err)
	}
	utc := parsed.UTC()
	return &utc, nil
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateArticlePayload runs schema validation plus the semantic checks the
// schema cannot express and returns the decoded payload.
func ValidateArticlePayload(payload json.RawMessage) (*ArticlePayload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var article ArticlePayload
	if err := json.Unmarshal(normalized, &article); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&article); err != nil {
		return nil, err
	}

	return &article, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("article.schema.json", strings.NewReader(articleSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("article.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(article *ArticlePayload) error {
	if article == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(article.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(article.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if strings.TrimSpace(article.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	trimmedURL := strings.TrimSpace(article.URL)
	if trimmedURL == "" {
		return fmt.Errorf("url must not be empty")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return fmt.Errorf("url is not a valid URI: %w", err)
	}

	if _, err := article.PublishedTime(); err != nil {
		return err
	}

	if article.Enrichment != nil {
		for i, topic := range article.Enrichment.Topics {
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("enrichment.topics[%d] must not be empty", i)
			}
		}
		for i, entity := range article.Enrichment.Entities {
			if strings.TrimSpace(entity) == "" {
				return fmt.Errorf("enrichment.entities[%d] must not be empty", i)
			}
		}
	}

	return nil
}
