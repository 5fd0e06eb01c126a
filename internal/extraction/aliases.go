package extraction

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
)

// Aliases maps broker-specific symbol spellings onto canonical tickers.
// Keys and values are upper-case.
type Aliases map[string]string

type aliasFile struct {
	Aliases map[string]string `toml:"aliases"`
}

// LoadAliases reads an [aliases] table from a TOML file. An empty path or a
// missing file yields no aliases.
func LoadAliases(path string) (Aliases, error) {
	if strings.TrimSpace(path) == "" {
		return Aliases{}, nil
	}

	var f aliasFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Aliases{}, nil
		}
		return nil, fmt.Errorf("decode symbol aliases %s: %w", path, err)
	}

	out := make(Aliases, len(f.Aliases))
	for from, to := range f.Aliases {
		from = strings.ToUpper(strings.TrimSpace(from))
		to = strings.ToUpper(strings.TrimSpace(to))
		if from == "" || to == "" {
			continue
		}
		out[from] = to
	}
	return out, nil
}

// Resolve returns the canonical ticker for symbol.
func (a Aliases) Resolve(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if to, ok := a[symbol]; ok {
		return to
	}
	return symbol
}
