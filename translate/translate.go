// Package translate machine-translates translation records through an LLM
// provider using schema-constrained structured output.
//
// Supported provider dialects: OpenAI-compatible chat (openai, groq,
// mistral, deepseek, xai, openrouter, custom-openai), Anthropic messages,
// Google AI (Gemini) and Ollama.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/minios-linux/langsync/config"
	"github.com/minios-linux/langsync/metrics"
	"github.com/minios-linux/langsync/notify"
	"github.com/minios-linux/langsync/storage"
)

var (
	// ErrAIDisabled is returned when no provider is configured.
	ErrAIDisabled = errors.New("AI translation is not configured")
	// ErrNoTranslatableAttributes is returned for items exposing no attributes.
	ErrNoTranslatableAttributes = errors.New("item exposes no translatable attributes")
)

// Translatable is an item with per-locale attributes.
type Translatable interface {
	TranslatableAttributes() []string
	Translation(attr, locale string) string
	SetTranslation(attr, locale, value string)
}

// Saver persists a Translatable that is not a storage.Record.
type Saver interface {
	Save(ctx context.Context) error
}

// skippedAttributes are never sent for translation.
var skippedAttributes = map[string]bool{"slug": true}

// Service runs AI translations and writes the results back.
type Service struct {
	cfg      *config.Config
	ai       Completer
	store    storage.RecordStore
	notifier notify.Notifier
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// NewService returns a Service. A nil ai disables translation.
func NewService(cfg *config.Config, ai Completer, store storage.RecordStore, n notify.Notifier, logger *log.Logger, m *metrics.Metrics) *Service {
	return &Service{cfg: cfg, ai: ai, store: store, notifier: n, logger: logger, metrics: m}
}

func (s *Service) prompt() string {
	if s.cfg.AI.Prompt != "" {
		return s.cfg.AI.Prompt
	}
	return config.DefaultPrompt
}

// targets resolves and validates the target locales. ok is false when the
// request must be dropped without writes.
func (s *Service) targets(source, target string, all bool) ([]string, bool, error) {
	if !s.cfg.HasLocale(source) {
		return nil, false, fmt.Errorf("source locale %q is not configured", source)
	}
	targets := ResolveTargets(s.cfg.LocaleCodes(), source, target, all)
	if len(targets) == 0 || slices.Contains(targets, source) {
		return nil, false, nil
	}
	for _, t := range targets {
		if !s.cfg.HasLocale(t) {
			return nil, false, fmt.Errorf("target locale %q is not configured", t)
		}
	}
	return targets, true, nil
}

func userPrompt(source string, targets []string, intro string, payload []byte) string {
	return fmt.Sprintf("Source Language: %s\nTarget Languages: %s\n%s\n\n%s",
		source, strings.Join(targets, ","), intro, payload)
}

func (s *Service) complete(ctx context.Context, req Request) (json.RawMessage, error) {
	raw, err := s.ai.Structured(ctx, req)
	provider := s.cfg.AI.Provider
	s.metrics.AIRequest(provider, err)
	if err != nil {
		s.notifier.Notify(notify.Notification{
			Level: notify.Danger,
			Title: "Translation failed",
			Body:  err.Error(),
		})
		return nil, err
	}
	return raw, nil
}

// TranslateRecords translates the source text of records into the target
// locale (or every other locale when all is set) with a single AI call.
// It returns false without writing when source is among the targets.
// Records are saved one at a time; a failing save leaves earlier records
// saved.
func (s *Service) TranslateRecords(ctx context.Context, records []*storage.Record, source, target string, all bool) (bool, error) {
	if s.ai == nil {
		s.notifier.Notify(notify.Notification{Level: notify.Warning, Title: "AI translation is disabled", Body: "configure ai.provider, ai.api_key and ai.model"})
		return false, ErrAIDisabled
	}
	targets, ok, err := s.targets(source, target, all)
	if err != nil || !ok {
		return false, err
	}
	if len(records) == 0 {
		s.notifier.Notify(notify.Notification{Level: notify.Warning, Title: "No records to translate"})
		return false, nil
	}

	payload := make(map[string]map[string]string, len(records))
	for i, r := range records {
		payload[strconv.Itoa(i)] = map[string]string{source: r.Text[source]}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encoding payload: %w", err)
	}

	s.logger.Debug("requesting translation", "records", len(records), "source", source, "targets", strings.Join(targets, ","))
	raw, err := s.complete(ctx, Request{
		Name:         "translations",
		SystemPrompt: s.prompt(),
		UserPrompt:   userPrompt(source, targets, "Translate the following records into the schema format strictly:", encoded),
		Schema:       BuildRecordSchema(len(records), targets),
	})
	if err != nil {
		return false, err
	}

	var answer map[string]map[string]any
	if err := json.Unmarshal(raw, &answer); err != nil {
		err = fmt.Errorf("decoding translations: %w", err)
		s.notifier.Notify(notify.Notification{Level: notify.Danger, Title: "Translation failed", Body: err.Error()})
		return false, err
	}

	saved := 0
	for i, r := range records {
		if !applyStrings(answer[strconv.Itoa(i)], targets, func(locale, v string) {
			r.SetTranslation(storage.TextAttribute, locale, v)
		}) {
			continue
		}
		if err := s.store.Save(ctx, r); err != nil {
			err = fmt.Errorf("saving record %d: %w", r.ID, err)
			s.notifier.Notify(notify.Notification{Level: notify.Danger, Title: "Translation failed", Body: err.Error()})
			return false, err
		}
		saved++
	}

	s.logger.Info("translated records", "saved", saved, "requested", len(records), "targets", strings.Join(targets, ","))
	s.notifier.Notify(notify.Notification{
		Level: notify.Success,
		Title: "Translation completed",
		Body:  fmt.Sprintf("%d of %d records updated", saved, len(records)),
	})
	return true, nil
}

// applyStrings calls set for every non-empty string value of targets in
// values and reports whether any was applied. A target the model left out
// or answered with "" keeps its stored text instead of being blanked.
func applyStrings(values map[string]any, targets []string, set func(locale, v string)) bool {
	changed := false
	for _, t := range targets {
		if v, ok := values[t].(string); ok && strings.TrimSpace(v) != "" {
			set(t, v)
			changed = true
		}
	}
	return changed
}

// TranslateAttributes translates the attributes of a single item. The
// slug attribute and attributes empty in the source locale are skipped.
func (s *Service) TranslateAttributes(ctx context.Context, item Translatable, source, target string, all bool) (bool, error) {
	if s.ai == nil {
		s.notifier.Notify(notify.Notification{Level: notify.Warning, Title: "AI translation is disabled", Body: "configure ai.provider, ai.api_key and ai.model"})
		return false, ErrAIDisabled
	}
	declared := item.TranslatableAttributes()
	if len(declared) == 0 {
		return false, ErrNoTranslatableAttributes
	}
	targets, ok, err := s.targets(source, target, all)
	if err != nil || !ok {
		return false, err
	}

	var attrs []string
	payload := make(map[string]string)
	for _, a := range declared {
		if skippedAttributes[a] {
			continue
		}
		text := item.Translation(a, source)
		if strings.TrimSpace(text) == "" {
			continue
		}
		attrs = append(attrs, a)
		payload[a] = text
	}
	if len(attrs) == 0 {
		s.notifier.Notify(notify.Notification{
			Level: notify.Warning,
			Title: "Nothing to translate",
			Body:  "no content in the source locale " + source,
		})
		return false, nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encoding payload: %w", err)
	}
	raw, err := s.complete(ctx, Request{
		Name:         "translations",
		SystemPrompt: s.prompt(),
		UserPrompt:   userPrompt(source, targets, "Translate the following content into the schema format strictly:", encoded),
		Schema:       BuildAttributeSchema(targets, attrs),
	})
	if err != nil {
		return false, err
	}

	var answer map[string]map[string]any
	if err := json.Unmarshal(raw, &answer); err != nil {
		err = fmt.Errorf("decoding translations: %w", err)
		s.notifier.Notify(notify.Notification{Level: notify.Danger, Title: "Translation failed", Body: err.Error()})
		return false, err
	}

	for _, t := range targets {
		for _, a := range attrs {
			if v, ok := answer[t][a].(string); ok && strings.TrimSpace(v) != "" {
				item.SetTranslation(a, t, v)
			}
		}
	}

	if err := s.save(ctx, item); err != nil {
		s.notifier.Notify(notify.Notification{Level: notify.Danger, Title: "Translation failed", Body: err.Error()})
		return false, err
	}
	s.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Translation completed"})
	return true, nil
}

func (s *Service) save(ctx context.Context, item Translatable) error {
	switch v := item.(type) {
	case *storage.Record:
		if err := s.store.Save(ctx, v); err != nil {
			return fmt.Errorf("saving record %d: %w", v.ID, err)
		}
	case Saver:
		return v.Save(ctx)
	}
	return nil
}
