package entities

// Entry is one medication line of the discharge section together with the
// indented continuation lines printed under it.
type Entry struct {
	Line          string   `json:"line"`
	IndentedLines []string `json:"indentedLines"`
}
