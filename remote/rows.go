package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/eringen/archivist/catalog"
)

// decodeRows decodes getAll rows one at a time so a bad row costs only
// itself. Rows that do not decode or carry no id are skipped.
func (c *Client) decodeRows(rows []json.RawMessage) []catalog.Object {
	objects := make([]catalog.Object, 0, len(rows))
	for i, raw := range rows {
		obj, err := decodeRow(raw)
		if err != nil {
			c.log.Warnf("skip row %d: %v", i+1, err)
			continue
		}
		obj.Images = catalog.NormalizePrimary(obj.Images)
		objects = append(objects, obj)
	}
	return objects
}

// decodeRow reads one object. Spreadsheets type cells on their own, so
// numbers and booleans are read back as text and array columns may arrive
// as JSON-encoded strings.
func decodeRow(raw json.RawMessage) (catalog.Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var cells map[string]any
	if err := dec.Decode(&cells); err != nil {
		return catalog.Object{}, err
	}
	for name, v := range cells {
		if catalog.ArrayColumns[name] {
			cells[name] = arrayCell(v)
			continue
		}
		cells[name] = textCell(v)
	}

	normalized, err := json.Marshal(cells)
	if err != nil {
		return catalog.Object{}, err
	}
	var obj catalog.Object
	if err := json.Unmarshal(normalized, &obj); err != nil {
		return catalog.Object{}, err
	}
	obj.ID = strings.TrimSpace(obj.ID)
	if obj.ID == "" {
		return catalog.Object{}, errors.New("missing id")
	}
	return obj, nil
}

func textCell(v any) any {
	switch v := v.(type) {
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return v
}

// arrayCell accepts a JSON array or a string holding one. Anything else
// reads as empty.
func arrayCell(v any) any {
	switch v := v.(type) {
	case []any:
		for i, e := range v {
			v[i] = textCell(e)
		}
		return v
	case string:
		var items []any
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		if strings.TrimSpace(v) == "" || dec.Decode(&items) != nil {
			return []any{}
		}
		return arrayCell(items)
	}
	return []any{}
}
