package config

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Cascade/internal/domain"
)

// Ключи документа.
const (
	keyLanding    = "landing"
	keyStages     = "stages"
	keyOptions    = "options"
	keyContainer  = "container"
	keyPrefix     = "prefix"
	keyPoke       = "poke_interval_seconds"
	keyTimeout    = "timeout_seconds"
	keyWorkflowID = "workflow_id"
	keyParams     = "params"
	keyPoll       = "poll_interval_seconds"
	keyNotifyTo   = "notify_to"
	keyLogTable   = "log_table"
	keyProcedures = "procedures"
)

// Decode разбирает и валидирует документ конфигурации.
//
// Возвращает:
//   - ErrConfigParse, если документ не YAML или корень не маппинг
//   - *ValidationError со всеми нарушениями схемы
func Decode(data []byte) (domain.RunConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return domain.RunConfig{}, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	// Пустой документ — это пустой маппинг, дальше сработает валидация
	doc := &yaml.Node{Kind: yaml.MappingNode}
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		doc = resolve(root.Content[0])
	}
	if doc.Kind != yaml.MappingNode {
		if isNull(doc) {
			doc = &yaml.Node{Kind: yaml.MappingNode}
		} else {
			return domain.RunConfig{}, fmt.Errorf("%w: document root must be a mapping (line %d)", ErrConfigParse, doc.Line)
		}
	}

	v := &validator{}
	cfg := v.runConfig(doc)
	if err := v.errs.OrNil(); err != nil {
		return domain.RunConfig{}, err
	}
	return cfg, nil
}

// stageDocument — представление стадии при кодировании.
type stageDocument struct {
	WorkflowID          string         `yaml:"workflow_id"`
	Params              map[string]any `yaml:"params,omitempty"`
	PollIntervalSeconds int            `yaml:"poll_interval_seconds,omitempty"`
}

type landingDocument struct {
	Container           string `yaml:"container"`
	Prefix              string `yaml:"prefix"`
	PokeIntervalSeconds int    `yaml:"poke_interval_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
}

type optionsDocument struct {
	NotifyTo   []string          `yaml:"notify_to,omitempty"`
	LogTable   string            `yaml:"log_table,omitempty"`
	Procedures map[string]string `yaml:"procedures,omitempty"`
}

// Encode сериализует конфигурацию в YAML.
//
// Стадии пишутся в порядке domain.StageOrder. Decode(Encode(cfg)) == cfg
// для любой валидной конфигурации с интервалами в целых секундах.
func Encode(cfg domain.RunConfig) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	if err := appendPair(root, keyLanding, landingDocument{
		Container:           cfg.Landing.Container,
		Prefix:              cfg.Landing.Prefix,
		PokeIntervalSeconds: seconds(cfg.Landing.PokeInterval),
		TimeoutSeconds:      seconds(cfg.Landing.Timeout),
	}); err != nil {
		return nil, err
	}

	stages := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range domain.StageOrder {
		sc, ok := cfg.Stage(key)
		if !ok {
			continue
		}
		if err := appendPair(stages, string(key), stageDocument{
			WorkflowID:          sc.WorkflowID,
			Params:              sc.Params,
			PollIntervalSeconds: seconds(sc.PollInterval),
		}); err != nil {
			return nil, err
		}
	}
	root.Content = append(root.Content, keyNode(keyStages), stages)

	opts := cfg.Options
	if len(opts.NotifyTo) > 0 || opts.LogTable != "" || len(opts.Procedures) > 0 {
		if err := appendPair(root, keyOptions, optionsDocument{
			NotifyTo:   opts.NotifyTo,
			LogTable:   opts.LogTable,
			Procedures: opts.Procedures,
		}); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func appendPair(m *yaml.Node, key string, value any) error {
	var v yaml.Node
	if err := v.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.Content = append(m.Content, keyNode(key), &v)
	return nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
