package service

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed knowledge/*.json
var knowledgeFS embed.FS

// KnowledgeBase holds the embedded NEM and SEP topic maps. The router stage
// picks topic keys; the specialist stage receives only the selected subset.
type KnowledgeBase struct {
	nem map[string]string
	sep map[string]string
}

// LoadKnowledgeBase parses the embedded topic maps.
func LoadKnowledgeBase() (*KnowledgeBase, error) {
	nem, err := loadTopicMap("knowledge/nem.json")
	if err != nil {
		return nil, fmt.Errorf("load nem knowledge: %w", err)
	}
	sep, err := loadTopicMap("knowledge/sep.json")
	if err != nil {
		return nil, fmt.Errorf("load sep knowledge: %w", err)
	}
	return &KnowledgeBase{nem: nem, sep: sep}, nil
}

func loadTopicMap(path string) (map[string]string, error) {
	data, err := knowledgeFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// NEMKeys returns the NEM topic keys in sorted order.
func (kb *KnowledgeBase) NEMKeys() []string { return sortedKeys(kb.nem) }

// SEPKeys returns the SEP topic keys in sorted order.
func (kb *KnowledgeBase) SEPKeys() []string { return sortedKeys(kb.sep) }

// Select returns the topic entries matching the given keys, across both maps.
func (kb *KnowledgeBase) Select(keys []string) map[string]string {
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := kb.nem[k]; ok {
			out[k] = v
		}
		if v, ok := kb.sep[k]; ok {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
