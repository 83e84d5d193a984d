package caesar

import (
	"encoding/csv"
	"io"
	"strconv"
)

// DumpStrings writes the container's string pool as CSV rows of
// (index, text), the format translation workflows consume
func (c *Container) DumpStrings(w io.Writer) error {
	cw := csv.NewWriter(w)
	for i, s := range c.Strings.entries {
		if err := cw.Write([]string{strconv.Itoa(i), s}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadStrings replaces string pool entries from CSV rows previously
// produced by DumpStrings. Rows with unknown indices are ignored.
func (c *Container) LoadStrings(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(row) < 2 {
			continue
		}
		idx, err := strconv.Atoi(row[0])
		if err != nil || idx < 0 || idx >= len(c.Strings.entries) {
			continue
		}
		c.Strings.entries[idx] = row[1]
	}
}
