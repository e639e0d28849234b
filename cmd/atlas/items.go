package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/atlas/plugin/ai/topic"
	"github.com/hrygo/atlas/store"
)

// itemFile is the document accepted by generate and import. The items may
// also be given as a bare top-level list.
type itemFile struct {
	Items []topic.Item `json:"items" yaml:"items"`
}

// readItemsFile reads items from path, or stdin when path is "-". The format
// is YAML for .yaml and .yml files and JSON otherwise, unless format is set.
func readItemsFile(path, format string) ([]topic.Item, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "json"
		}
	}
	return decodeItems(data, format)
}

func decodeItems(data []byte, format string) ([]topic.Item, error) {
	trimmed := strings.TrimSpace(string(data))
	bareList := strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "-")

	switch format {
	case "yaml":
		if bareList {
			var items []topic.Item
			if err := yaml.Unmarshal(data, &items); err != nil {
				return nil, errors.Wrap(err, "decode yaml items")
			}
			return items, nil
		}
		var file itemFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, errors.Wrap(err, "decode yaml items")
		}
		return file.Items, nil
	case "json":
		if strings.HasPrefix(trimmed, "[") {
			var items []topic.Item
			if err := json.Unmarshal(data, &items); err != nil {
				return nil, errors.Wrap(err, "decode json items")
			}
			return items, nil
		}
		var file itemFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, errors.Wrap(err, "decode json items")
		}
		return file.Items, nil
	default:
		return nil, errors.Errorf("unsupported format %q, want json or yaml", format)
	}
}

// toStoreItem converts a file item into a stored item of creator.
func toStoreItem(creator string, item topic.Item) (*store.Item, error) {
	if strings.TrimSpace(item.ID) == "" {
		return nil, errors.New("item id is required")
	}
	kind := store.ItemKind(item.Kind)
	valid := false
	for _, k := range store.ItemKinds {
		if k == kind {
			valid = true
			break
		}
	}
	if !valid {
		return nil, errors.Errorf("item %s has unknown kind %q", item.ID, item.Kind)
	}

	stored := &store.Item{
		UID:       item.ID,
		Creator:   creator,
		Kind:      kind,
		Tags:      item.Labels,
		Embedding: item.Embedding,
	}
	if !item.CreatedAt.IsZero() {
		stored.CreatedTs = item.CreatedAt.Unix()
	}
	if !item.LastActive.IsZero() {
		stored.LastActiveTs = item.LastActive.Unix()
	}
	return stored, nil
}
