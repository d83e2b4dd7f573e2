package config

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Cascade/internal/domain"
)

// identifierRe — имя таблицы или процедуры, опционально со схемой (dbo.etl_logs).
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// IsIdentifier проверяет, что строка — допустимое SQL-имя.
func IsIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

var (
	topLevelKeys = map[string]bool{keyLanding: true, keyStages: true, keyOptions: true}
	landingKeys  = map[string]bool{keyContainer: true, keyPrefix: true, keyPoke: true, keyTimeout: true}
	stageKeys    = map[string]bool{keyWorkflowID: true, keyParams: true, keyPoll: true}
	optionKeys   = map[string]bool{keyNotifyTo: true, keyLogTable: true, keyProcedures: true}
)

// validator обходит дерево документа и копит нарушения.
// Каждый метод возвращает то, что удалось прочитать, даже при ошибках,
// чтобы проверка продолжилась дальше.
type validator struct {
	errs ValidationError
}

func (v *validator) add(field string, n *yaml.Node, format string, args ...any) {
	line := 0
	if n != nil {
		line = n.Line
	}
	v.errs.Add(field, fmt.Sprintf(format, args...), line)
}

func (v *validator) runConfig(doc *yaml.Node) domain.RunConfig {
	v.unknownKeys(doc, "", topLevelKeys)

	return domain.RunConfig{
		Landing: v.landing(lookup(doc, keyLanding)),
		Stages:  v.stages(lookup(doc, keyStages)),
		Options: v.options(lookup(doc, keyOptions)),
	}
}

func (v *validator) landing(n *yaml.Node) domain.LandingConfig {
	if n != nil && !isNull(n) && n.Kind != yaml.MappingNode {
		v.add(keyLanding, n, "must be a mapping")
		return domain.LandingConfig{}
	}
	v.unknownKeys(n, keyLanding, landingKeys)

	return domain.LandingConfig{
		Container:    v.requiredString(lookup(n, keyContainer), "landing.container"),
		Prefix:       v.requiredString(lookup(n, keyPrefix), "landing.prefix"),
		PokeInterval: v.seconds(lookup(n, keyPoke), "landing.poke_interval_seconds", domain.DefaultPokeInterval),
		Timeout:      v.seconds(lookup(n, keyTimeout), "landing.timeout_seconds", domain.DefaultLandingTimeout),
	}
}

func (v *validator) stages(n *yaml.Node) []domain.StageConfig {
	if n != nil && !isNull(n) && n.Kind != yaml.MappingNode {
		v.add(keyStages, n, "must be a mapping")
		return nil
	}

	// Неизвестные и повторяющиеся ключи
	if n != nil {
		seen := make(map[string]bool)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if !domain.IsKnownStage(domain.StageKey(k.Value)) {
				v.add("stages."+k.Value, k, "unknown stage (expected one of %s)", stageList())
				continue
			}
			if seen[k.Value] {
				v.add("stages."+k.Value, k, "duplicate stage")
			}
			seen[k.Value] = true
		}
	}

	out := make([]domain.StageConfig, 0, len(domain.StageOrder))
	for _, key := range domain.StageOrder {
		path := "stages." + string(key)
		sn := lookup(n, string(key))

		if sn != nil && !isNull(sn) && sn.Kind != yaml.MappingNode {
			v.add(path, sn, "must be a mapping")
			continue
		}
		v.unknownKeys(sn, path, stageKeys)

		out = append(out, domain.StageConfig{
			Key:          key,
			WorkflowID:   v.requiredString(lookup(sn, keyWorkflowID), path+".workflow_id"),
			Params:       v.params(lookup(sn, keyParams), path+".params"),
			PollInterval: v.seconds(lookup(sn, keyPoll), path+".poll_interval_seconds", domain.DefaultStagePollInterval),
		})
	}
	return out
}

func (v *validator) params(n *yaml.Node, path string) map[string]any {
	if n == nil || isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		v.add(path, n, "must be a mapping")
		return nil
	}

	var params map[string]any
	if err := n.Decode(&params); err != nil {
		v.add(path, n, "cannot decode: %v", err)
		return nil
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func (v *validator) options(n *yaml.Node) domain.Options {
	if n == nil || isNull(n) {
		return domain.Options{}
	}
	if n.Kind != yaml.MappingNode {
		v.add(keyOptions, n, "must be a mapping")
		return domain.Options{}
	}
	v.unknownKeys(n, keyOptions, optionKeys)

	var opts domain.Options

	// notify_to
	if nn := lookup(n, keyNotifyTo); nn != nil && !isNull(nn) {
		if nn.Kind != yaml.SequenceNode {
			v.add("options.notify_to", nn, "must be a list")
		} else {
			for i, item := range nn.Content {
				path := "options.notify_to[" + strconv.Itoa(i) + "]"
				addr := v.requiredString(item, path)
				if addr == "" {
					continue
				}
				if _, err := mail.ParseAddress(addr); err != nil {
					v.add(path, item, "invalid email address %q", addr)
					continue
				}
				opts.NotifyTo = append(opts.NotifyTo, addr)
			}
		}
	}

	// log_table
	if ln := lookup(n, keyLogTable); ln != nil && !isNull(ln) {
		table := v.requiredString(ln, "options.log_table")
		if table != "" && !IsIdentifier(table) {
			v.add("options.log_table", ln, "invalid table name %q", table)
		} else {
			opts.LogTable = table
		}
	}

	// procedures
	if pn := lookup(n, keyProcedures); pn != nil && !isNull(pn) {
		if pn.Kind != yaml.MappingNode {
			v.add("options.procedures", pn, "must be a mapping")
		} else {
			for i := 0; i+1 < len(pn.Content); i += 2 {
				name := pn.Content[i].Value
				path := "options.procedures." + name
				proc := v.requiredString(resolve(pn.Content[i+1]), path)
				if proc == "" {
					continue
				}
				if !IsIdentifier(proc) {
					v.add(path, pn.Content[i+1], "invalid procedure name %q", proc)
					continue
				}
				if opts.Procedures == nil {
					opts.Procedures = make(map[string]string)
				}
				opts.Procedures[name] = proc
			}
		}
	}

	return opts
}

// requiredString читает непустую строку.
func (v *validator) requiredString(n *yaml.Node, path string) string {
	if n == nil || isNull(n) {
		v.add(path, n, "is required")
		return ""
	}
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		v.add(path, n, "must be a string")
		return ""
	}
	if strings.TrimSpace(n.Value) == "" {
		v.add(path, n, "must not be empty")
		return ""
	}
	return n.Value
}

// seconds читает положительное целое число секунд; отсутствие — значение по умолчанию.
func (v *validator) seconds(n *yaml.Node, path string, def time.Duration) time.Duration {
	if n == nil || isNull(n) {
		return def
	}
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		v.add(path, n, "must be an integer")
		return def
	}

	var s int
	if err := n.Decode(&s); err != nil {
		v.add(path, n, "must be an integer")
		return def
	}
	if s <= 0 {
		v.add(path, n, "must be positive, got %d", s)
		return def
	}
	return time.Duration(s) * time.Second
}

func (v *validator) unknownKeys(n *yaml.Node, path string, known map[string]bool) {
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if known[k.Value] {
			continue
		}
		field := k.Value
		if path != "" {
			field = path + "." + k.Value
		}
		v.add(field, k, "unknown field")
	}
}

// lookup возвращает значение по ключу в маппинге или nil.
func lookup(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolve(n.Content[i+1])
		}
	}
	return nil
}

// resolve раскрывает YAML-алиасы.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func stageList() string {
	keys := make([]string, 0, len(domain.StageOrder))
	for _, k := range domain.StageOrder {
		keys = append(keys, string(k))
	}
	return strings.Join(keys, ", ")
}
