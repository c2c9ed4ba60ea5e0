package keyword

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrEmptyDictionary is returned when an alias file defines no entries.
var ErrEmptyDictionary = errors.New("alias dictionary has no entries")

// LoadDictionary reads alias entries from a YAML file of the form:
//
//	entries:
//	  - label: ラーメン
//	    priority: 10
//	    aliases: [らーめん, ramen, 拉麺]
//
// An empty path returns the built-in DefaultEntries.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return NewDictionary(DefaultEntries()), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load alias dictionary %s: %w", path, err)
	}

	var entries []AliasEntry
	if err := k.Unmarshal("entries", &entries); err != nil {
		return nil, fmt.Errorf("failed to parse alias dictionary %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDictionary)
	}
	return NewDictionary(entries), nil
}

// DefaultEntries returns the built-in genre aliases.
func DefaultEntries() []AliasEntry {
	return []AliasEntry{
		{Label: "ラーメン", Priority: 10, Aliases: []string{"らーめん", "ramen", "拉麺", "中華そば", "つけ麺"}},
		{Label: "寿司", Priority: 10, Aliases: []string{"すし", "鮨", "鮓", "sushi", "回転寿司"}},
		{Label: "焼肉", Priority: 8, Aliases: []string{"やきにく", "yakiniku", "ホルモン"}},
		{Label: "居酒屋", Priority: 6, Aliases: []string{"いざかや", "izakaya", "飲み屋"}},
		{Label: "カフェ", Priority: 6, Aliases: []string{"かふぇ", "cafe", "café", "喫茶店", "コーヒー"}},
		{Label: "そば", Priority: 5, Aliases: []string{"蕎麦", "soba"}},
		{Label: "うどん", Priority: 5, Aliases: []string{"饂飩", "udon"}},
		{Label: "カレー", Priority: 5, Aliases: []string{"かれー", "curry", "カリー"}},
		{Label: "焼き鳥", Priority: 4, Aliases: []string{"焼鳥", "やきとり", "yakitori"}},
		{Label: "天ぷら", Priority: 4, Aliases: []string{"天麩羅", "てんぷら", "tempura"}},
	}
}
