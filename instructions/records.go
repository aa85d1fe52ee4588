package instructions

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// recordSet keeps instruction records in insertion order. It encodes as a
// JSON object keyed by instruction ID, the format of exported backups.
type recordSet struct {
	order   []string
	records map[string]Instruction
}

func newRecordSet() *recordSet {
	return &recordSet{records: make(map[string]Instruction)}
}

// put stores a record, keeping the position of an existing ID
func (rs *recordSet) put(id string, rec Instruction) {
	if _, ok := rs.records[id]; !ok {
		rs.order = append(rs.order, id)
	}
	rs.records[id] = rec
}

func (rs *recordSet) has(id string) bool {
	_, ok := rs.records[id]
	return ok
}

func (rs *recordSet) clone() *recordSet {
	c := &recordSet{
		order:   append([]string(nil), rs.order...),
		records: make(map[string]Instruction, len(rs.records)),
	}
	for id, rec := range rs.records {
		c.records[id] = rec
	}
	return c
}

func (rs *recordSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range rs.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(rs.records[id])
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (rs *recordSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrInvalidFormat
	}

	set := newRecordSet()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)

		var rec Instruction
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		set.put(id, rec.normalized())
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*rs = *set
	return nil
}
